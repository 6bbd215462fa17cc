package net

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/astraeus/server/internal/net/packet"
)

// LoginResponse is the status byte returned to the client after the login
// block has been read.
type LoginResponse int

const (
	LoginOK                 LoginResponse = 2
	LoginInvalidCredentials LoginResponse = 3
	LoginAlreadyOnline      LoginResponse = 5
	LoginGameUpdated        LoginResponse = 6
	LoginWorldFull          LoginResponse = 7
	LoginBadSessionID       LoginResponse = 10
	LoginRejected           LoginResponse = 11
)

const (
	connectionTypeGame  = 14
	loginTypeNew        = 16
	loginTypeReconnect  = 18
	loginBlockMagic     = 255
	secureBlockOpcode   = 10
	archiveChecksums    = 9
	maxCredentialLength = 20
)

// LoginRequest is the decoded login block.
type LoginRequest struct {
	Username     string
	Password     string
	Revision     int
	LowMemory    bool
	Reconnecting bool
	UID          int32
	Seed         [4]uint32
	NameHash     int
}

var errBadHandshake = fmt.Errorf("%w: bad login handshake", packet.ErrProtocol)

// readLoginRequest performs the plaintext part of the handshake: it reads
// the connection type and name hash, replies with the server session key,
// then reads and validates the login block. Responses for rejected
// requests are the caller's job.
func readLoginRequest(rw io.ReadWriter, serverKey uint64) (*LoginRequest, LoginResponse, error) {
	var hdr [2]byte
	if _, err := io.ReadFull(rw, hdr[:]); err != nil {
		return nil, 0, fmt.Errorf("read connection type: %w", err)
	}
	if hdr[0] != connectionTypeGame {
		return nil, 0, fmt.Errorf("%w: connection type %d", errBadHandshake, hdr[0])
	}

	// 8 ignored bytes, status 0 (proceed), server session key.
	reply := make([]byte, 17)
	binary.BigEndian.PutUint64(reply[9:], serverKey)
	if _, err := rw.Write(reply); err != nil {
		return nil, 0, fmt.Errorf("write server key: %w", err)
	}

	var typeAndSize [2]byte
	if _, err := io.ReadFull(rw, typeAndSize[:]); err != nil {
		return nil, 0, fmt.Errorf("read login type: %w", err)
	}
	loginType := typeAndSize[0]
	if loginType != loginTypeNew && loginType != loginTypeReconnect {
		return nil, 0, fmt.Errorf("%w: login type %d", errBadHandshake, loginType)
	}
	block := make([]byte, typeAndSize[1])
	if _, err := io.ReadFull(rw, block); err != nil {
		return nil, 0, fmt.Errorf("read login block: %w", err)
	}

	req, resp, err := parseLoginBlock(block, serverKey)
	if err != nil {
		return nil, resp, err
	}
	req.NameHash = int(hdr[1])
	req.Reconnecting = loginType == loginTypeReconnect
	return req, resp, nil
}

func parseLoginBlock(block []byte, serverKey uint64) (*LoginRequest, LoginResponse, error) {
	r := packet.NewReader(block)
	magic, err := r.GetByte()
	if err != nil {
		return nil, LoginRejected, truncatedLogin(err)
	}
	if magic != loginBlockMagic {
		return nil, LoginRejected, fmt.Errorf("%w: magic %d", errBadHandshake, magic)
	}
	req := &LoginRequest{}
	if req.Revision, err = r.GetShort(); err != nil {
		return nil, LoginRejected, truncatedLogin(err)
	}
	lowMem, err := r.GetByte()
	if err != nil {
		return nil, LoginRejected, truncatedLogin(err)
	}
	req.LowMemory = lowMem == 1
	if _, err := r.GetBytes(4 * archiveChecksums); err != nil {
		return nil, LoginRejected, truncatedLogin(err)
	}
	if _, err := r.GetByte(); err != nil { // secure block length
		return nil, LoginRejected, truncatedLogin(err)
	}
	op, err := r.GetByte()
	if err != nil {
		return nil, LoginRejected, truncatedLogin(err)
	}
	if op != secureBlockOpcode {
		return nil, LoginRejected, fmt.Errorf("%w: secure block opcode %d", errBadHandshake, op)
	}
	clientKey, err := r.GetLong()
	if err != nil {
		return nil, LoginRejected, truncatedLogin(err)
	}
	reportedKey, err := r.GetLong()
	if err != nil {
		return nil, LoginRejected, truncatedLogin(err)
	}
	if uint64(reportedKey) != serverKey {
		return nil, LoginBadSessionID, fmt.Errorf("%w: server key mismatch", errBadHandshake)
	}
	if req.UID, err = r.GetInt(); err != nil {
		return nil, LoginRejected, truncatedLogin(err)
	}
	if req.Username, err = r.GetString(); err != nil {
		return nil, LoginRejected, truncatedLogin(err)
	}
	if req.Password, err = r.GetString(); err != nil {
		return nil, LoginRejected, truncatedLogin(err)
	}
	if len(req.Username) == 0 || len(req.Username) > 12 || len(req.Password) == 0 || len(req.Password) > maxCredentialLength {
		return nil, LoginInvalidCredentials, fmt.Errorf("%w: credential length", errBadHandshake)
	}

	req.Seed = [4]uint32{
		uint32(uint64(clientKey) >> 32),
		uint32(clientKey),
		uint32(serverKey >> 32),
		uint32(serverKey),
	}
	return req, LoginOK, nil
}

func truncatedLogin(err error) error {
	if errors.Is(err, packet.ErrTruncated) {
		return fmt.Errorf("%w: login block truncated", errBadHandshake)
	}
	return err
}

// writeLoginResponse sends the status byte, plus rights and the flagged
// marker on success.
func writeLoginResponse(w io.Writer, resp LoginResponse, rights int) error {
	var out []byte
	if resp == LoginOK {
		out = []byte{byte(resp), byte(rights), 0}
	} else {
		out = []byte{byte(resp)}
	}
	_, err := w.Write(out)
	return err
}
