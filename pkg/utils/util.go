package utils

import (
	"errors"
	"math/rand"
	"net"
	"runtime"
	"runtime/debug"

	"github.com/ghettovoice/gosip/log"
)

var ErrPort = errors.New("invalid port range")

// ListenUDPInPortRange binds a UDP socket inside [portMin, portMax],
// starting at a random port and scanning forward with wrap-around. A laddr
// carrying an explicit port, or a zero range, falls through to a plain
// ListenUDP.
func ListenUDPInPortRange(portMin, portMax int, laddr *net.UDPAddr) (*net.UDPConn, error) {
	if (laddr.Port != 0) || ((portMin == 0) && (portMax == 0)) {
		return net.ListenUDP("udp", laddr)
	}
	i := portMin
	if i == 0 {
		i = 1
	}
	j := portMax
	if j == 0 {
		j = 0xFFFF
	}
	if i > j {
		return nil, ErrPort
	}

	portStart := rand.Intn(j-i+1) + i
	portCurrent := portStart
	for {
		*laddr = net.UDPAddr{IP: laddr.IP, Port: portCurrent}
		c, e := net.ListenUDP("udp", laddr)
		if e == nil {
			return c, nil
		}
		portCurrent++
		if portCurrent > j {
			portCurrent = i
		}
		if portCurrent == portStart {
			break
		}
	}
	return nil, ErrPort
}

// Recover logs a panic from a long-lived goroutine instead of letting it
// take the process down.
func Recover(l log.Logger, flag string) {
	_, _, line, _ := runtime.Caller(1)
	if err := recover(); err != nil {
		l.Errorf("[%s] recovered panic at line %d => %v", flag, line, err)
		debug.PrintStack()
	}
}
