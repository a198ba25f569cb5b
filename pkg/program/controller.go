// Package program sequences the XCMP commands that unlock a radio's
// codeplug for bulk read/write (§4.E).
package program

import (
	"fmt"

	"github.com/n5dmr/trbo-xnl/pkg/logger"
	"github.com/n5dmr/trbo-xnl/pkg/xcmp"
)

// DeviceInfo holds the identity fields populated by step 2 of the unlock
// sequence (§4.E).
type DeviceInfo struct {
	SecurityKeyToken [16]byte
	Model            string // queried via xcmp.OpModel (0x0010)
	ModelNumber      string // TANAPA ordering code, xcmp.OpTanapaNumber (0x001F)
	Type             string // xcmp.OpVersionInfo sub-type 0x41
	Serial           string // xcmp.OpSerial (0x0011)
	Firmware         string // xcmp.OpVersionInfo sub-type 0x00
	Capabilities     []byte
}

// Partition selects which codeplug partition UnlockPartition targets.
type Partition = byte

const (
	PartitionApplication = xcmp.PartitionApplication
	PartitionCodeplug    = xcmp.PartitionCodeplug
)

// keyEncrypter is satisfied by *tea.Cipher and *xnl.Session (via its
// Cipher() accessor); Controller only needs the encrypt operation, not the
// whole session.
type keyEncrypter interface {
	EncryptKeyBlocks(key [32]byte) [32]byte
}

// Controller drives the §4.E unlock sequence over a Dispatcher.
type Controller struct {
	d       *xcmp.Dispatcher
	cipher  keyEncrypter
	log     *logger.Logger
	entered bool
}

// New creates a Controller bound to an already-initialized Dispatcher
// (WaitForInit must have already completed) and the cipher the owning
// session authenticated with.
func New(d *xcmp.Dispatcher, cipher keyEncrypter, log *logger.Logger) *Controller {
	if log == nil {
		log = logger.New(logger.Config{})
	}
	return &Controller{d: d, cipher: cipher, log: log.WithComponent("program.controller")}
}

// Unlock runs steps 2-7 of §4.E: identity queries, program-mode entry,
// radio-key read + TEA unlock, and partition unlock. Step 1 (awaiting the
// init-complete broadcast) is the caller's responsibility via
// Dispatcher.WaitForInit, since it belongs to the XCMP layer, not here.
//
// On any failure after program mode has been entered, the caller should
// call ExitProgramMode (best-effort) before giving up; this method does not
// do so itself so that callers can defer it uniformly around the whole
// read/write operation.
func (c *Controller) Unlock(partition Partition) (DeviceInfo, error) {
	info, err := c.queryIdentity()
	if err != nil {
		return info, fmt.Errorf("program: identity query failed: %w", err)
	}

	if err := c.enterProgramMode(); err != nil {
		return info, fmt.Errorf("program: enter program mode failed: %w", err)
	}

	radioKey, err := c.readRadioKey()
	if err != nil {
		return info, fmt.Errorf("program: read radio key failed: %w", err)
	}

	token := c.cipher.EncryptKeyBlocks(radioKey)

	if err := c.unlockSecurity(token); err != nil {
		return info, fmt.Errorf("program: unlock security failed: %w", err)
	}

	if err := c.unlockPartition(partition); err != nil {
		return info, fmt.Errorf("program: unlock partition failed: %w", err)
	}

	return info, nil
}

func (c *Controller) queryIdentity() (DeviceInfo, error) {
	var info DeviceInfo

	secBody, err := c.d.Request(xcmp.OpSecurityKey, nil)
	if err != nil {
		return info, err
	}
	sec, err := xcmp.ParseSecurityKeyReply(secBody)
	if err != nil {
		return info, err
	}
	info.SecurityKeyToken = sec.Token

	modelBody, err := c.d.Request(xcmp.OpModel, nil)
	if err != nil {
		return info, err
	}
	model, err := xcmp.ParseStringReply(modelBody)
	if err != nil {
		return info, err
	}
	info.Model = model.Value

	typeBody, err := c.d.Request(xcmp.OpVersionInfo, xcmp.VersionInfoRequest{SubType: xcmp.VersionInfoType}.Encode())
	if err != nil {
		return info, err
	}
	typeReply, err := xcmp.ParseVersionInfoReply(typeBody)
	if err != nil {
		return info, err
	}
	info.Type = typeReply.Value

	serialBody, err := c.d.Request(xcmp.OpSerial, nil)
	if err != nil {
		return info, err
	}
	serial, err := xcmp.ParseStringReply(serialBody)
	if err != nil {
		return info, err
	}
	info.Serial = serial.Value

	fwBody, err := c.d.Request(xcmp.OpVersionInfo, xcmp.VersionInfoRequest{SubType: xcmp.VersionInfoFirmware}.Encode())
	if err != nil {
		return info, err
	}
	fw, err := xcmp.ParseVersionInfoReply(fwBody)
	if err != nil {
		return info, err
	}
	info.Firmware = fw.Value

	tanapaBody, err := c.d.Request(xcmp.OpTanapaNumber, nil)
	if err != nil {
		return info, err
	}
	tanapa, err := xcmp.ParseStringReply(tanapaBody)
	if err != nil {
		return info, err
	}
	info.ModelNumber = tanapa.Value

	capBody, err := c.d.Request(xcmp.OpCapabilities, nil)
	if err != nil {
		return info, err
	}
	capReply, err := xcmp.ParseCapabilitiesReply(capBody)
	if err != nil {
		return info, err
	}
	info.Capabilities = capReply.Raw

	return info, nil
}

func (c *Controller) enterProgramMode() error {
	body, err := c.d.Request(xcmp.OpProgramMode, xcmp.ProgramModeRequest{Action: xcmp.ProgramModeEnter}.Encode())
	if err != nil {
		return err
	}
	reply, err := xcmp.ParseProgramModeReply(body)
	if err != nil {
		return err
	}
	if reply.ErrorCode != xcmp.ErrOK {
		return fmt.Errorf("enter program mode: device error 0x%02X", reply.ErrorCode)
	}
	c.entered = true
	c.log.Info("entered program mode")
	return nil
}

// ExitProgramMode issues the exit command. It is best-effort: callers should
// ignore its error when invoked as an unwind step, per §4.E/§7. Exiting is a
// no-op if program mode was never entered.
func (c *Controller) ExitProgramMode() error {
	if !c.entered {
		return nil
	}
	body, err := c.d.Request(xcmp.OpProgramMode, xcmp.ProgramModeRequest{Action: xcmp.ProgramModeExit}.Encode())
	if err != nil {
		return err
	}
	reply, err := xcmp.ParseProgramModeReply(body)
	if err != nil {
		return err
	}
	c.entered = false
	c.log.Info("exited program mode")
	if reply.ErrorCode != xcmp.ErrOK {
		return fmt.Errorf("exit program mode: device error 0x%02X", reply.ErrorCode)
	}
	return nil
}

func (c *Controller) readRadioKey() ([32]byte, error) {
	body, err := c.d.Request(xcmp.OpReadRadioKey, nil)
	if err != nil {
		return [32]byte{}, err
	}
	reply, err := xcmp.ParseReadRadioKeyReply(body)
	if err != nil {
		return [32]byte{}, err
	}
	if reply.ErrorCode != xcmp.ErrOK {
		return [32]byte{}, fmt.Errorf("read radio key: device error 0x%02X", reply.ErrorCode)
	}
	return reply.Key, nil
}

func (c *Controller) unlockSecurity(token [32]byte) error {
	body, err := c.d.Request(xcmp.OpUnlockSecurity, xcmp.UnlockSecurityRequest{Token: token}.Encode())
	if err != nil {
		return err
	}
	reply, err := xcmp.ParseUnlockSecurityReply(body)
	if err != nil {
		return err
	}
	switch reply.ErrorCode {
	case xcmp.ErrOK:
		return nil
	case xcmp.ErrWrongAlgorithmOrKey:
		return fmt.Errorf("unlock security: wrong algorithm or key")
	case xcmp.ErrSecurityLocked:
		return fmt.Errorf("unlock security: radio locked out")
	default:
		return fmt.Errorf("unlock security: device error 0x%02X", reply.ErrorCode)
	}
}

func (c *Controller) unlockPartition(partition Partition) error {
	body, err := c.d.Request(xcmp.OpUnlockPartition, xcmp.UnlockPartitionRequest{Partition: partition}.Encode())
	if err != nil {
		return err
	}
	reply, err := xcmp.ParseUnlockPartitionReply(body)
	if err != nil {
		return err
	}
	if reply.ErrorCode != xcmp.ErrOK {
		return fmt.Errorf("unlock partition: device error 0x%02X", reply.ErrorCode)
	}
	return nil
}
