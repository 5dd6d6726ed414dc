// Package socks5: the server half of a SOCKS5 CONNECT greeting (no auth).
package socks5

import (
	"encoding/binary"
	"io"
	"net"
	"strconv"

	"github.com/pkg/errors"

	"dev.c0redev.nfchain/internal/fault"
)

const version = 5

const (
	cmdConnect = 1

	atypIPv4   = 1
	atypDomain = 3
	atypIPv6   = 4
)

// Reply codes.
const (
	Succeeded       = 0x00
	GeneralFailure  = 0x01
	HostUnreachable = 0x04
	CmdNotSupported = 0x07
)

// Accept reads greeting and CONNECT request from conn and returns host:port.
// Nothing past the request is consumed. The caller must answer with Reply.
// Malformed requests fail with fault.KindProtocol, transport errors with
// fault.KindIO.
func Accept(conn io.ReadWriter) (string, error) {
	buf := make([]byte, 256)
	// greeting: VER NMETHODS METHODS
	if _, err := io.ReadFull(conn, buf[:2]); err != nil {
		return "", fault.IO(err, "socks greeting")
	}
	if buf[0] != version {
		return "", fault.Protocolf("socks version %d", buf[0])
	}
	if n := int(buf[1]); n > 0 {
		if _, err := io.ReadFull(conn, buf[:n]); err != nil {
			return "", fault.IO(err, "socks methods")
		}
	}
	// VER METHOD (0 = no auth)
	if _, err := conn.Write([]byte{version, 0}); err != nil {
		return "", fault.IO(err, "socks method reply")
	}
	// request: VER CMD RSV ATYP DST.ADDR DST.PORT
	if _, err := io.ReadFull(conn, buf[:4]); err != nil {
		return "", fault.IO(err, "socks request")
	}
	if buf[0] != version {
		return "", fault.Protocolf("socks version %d", buf[0])
	}
	if buf[1] != cmdConnect {
		Reply(conn, CmdNotSupported)
		return "", fault.Protocolf("unsupported socks cmd %d", buf[1])
	}
	var host string
	switch atyp := buf[3]; atyp {
	case atypIPv4:
		if _, err := io.ReadFull(conn, buf[:4]); err != nil {
			return "", fault.IO(err, "socks ipv4")
		}
		host = net.IP(buf[:4]).String()
	case atypDomain:
		if _, err := io.ReadFull(conn, buf[:1]); err != nil {
			return "", fault.IO(err, "socks domain")
		}
		n := int(buf[0])
		if _, err := io.ReadFull(conn, buf[:n]); err != nil {
			return "", fault.IO(err, "socks domain")
		}
		host = string(buf[:n])
	case atypIPv6:
		if _, err := io.ReadFull(conn, buf[:16]); err != nil {
			return "", fault.IO(err, "socks ipv6")
		}
		host = net.IP(buf[:16]).String()
	default:
		Reply(conn, GeneralFailure)
		return "", fault.Protocolf("unsupported socks atyp %d", atyp)
	}
	if _, err := io.ReadFull(conn, buf[:2]); err != nil {
		return "", fault.IO(err, "socks port")
	}
	port := binary.BigEndian.Uint16(buf[:2])
	return net.JoinHostPort(host, strconv.Itoa(int(port))), nil
}

// Reply: VER REP RSV ATYP BND.ADDR BND.PORT with a zero IPv4 bind address.
func Reply(conn io.Writer, rep byte) error {
	_, err := conn.Write([]byte{version, rep, 0, atypIPv4, 0, 0, 0, 0, 0, 0})
	return err
}

// Dial performs the client half against a SOCKS5 server on conn.
func Dial(conn io.ReadWriter, target string) error {
	host, portStr, err := net.SplitHostPort(target)
	if err != nil {
		return errors.Wrap(err, "socks target")
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return errors.Wrap(err, "socks target port")
	}
	if len(host) > 255 {
		return errors.New("socks target host too long")
	}
	if _, err := conn.Write([]byte{version, 1, 0}); err != nil {
		return err
	}
	buf := make([]byte, 10)
	if _, err := io.ReadFull(conn, buf[:2]); err != nil {
		return errors.Wrap(err, "socks method reply")
	}
	if buf[0] != version || buf[1] != 0 {
		return errors.Errorf("socks method rejected (%d)", buf[1])
	}
	req := []byte{version, cmdConnect, 0, atypDomain, byte(len(host))}
	req = append(req, host...)
	req = binary.BigEndian.AppendUint16(req, uint16(port))
	if _, err := conn.Write(req); err != nil {
		return err
	}
	if _, err := io.ReadFull(conn, buf); err != nil {
		return errors.Wrap(err, "socks reply")
	}
	if buf[1] != Succeeded {
		return errors.Errorf("socks connect failed (%d)", buf[1])
	}
	return nil
}
