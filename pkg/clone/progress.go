package clone

// Progress is one monotonic progress update, fraction ∈ [0.0, 1.0], with an
// optional phase label for multi-stage operations like Write (§4.F:
// "starting, writing, validating CRC, deploying").
type Progress struct {
	Fraction float64
	Phase    string
}

// ProgressFunc is the caller's progress callback (§6). It is the
// authoritative sink: Reader/Writer call it synchronously and in order.
type ProgressFunc func(Progress)

// Publisher fans progress events out to a secondary observer (e.g.
// pkg/progresshub's websocket hub) best-effort: Reader/Writer never block
// on it and a failing/absent Publisher never changes ProgressFunc
// semantics (§4.F).
type Publisher interface {
	Publish(Progress)
}

func publish(pub Publisher, p Progress) {
	if pub == nil {
		return
	}
	defer func() { _ = recover() }()
	pub.Publish(p)
}
