package net

import (
	"net"
	"strconv"
	"sync"
	"testing"
)

// SharedPortManager hands out ports to the tests of the process.
var SharedPortManager = &PortManager{}

/*
PortManager remembers the ports it has returned so that parallel tests
do not get the same "free" port before either of them starts listening.
*/
type PortManager struct {
	mu   sync.Mutex
	used map[int]struct{}
}

// GetFreePort returns port which is free at the moment and hasn't been returned before.
func (pm *PortManager) GetFreePort() (int, error) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	if pm.used == nil {
		pm.used = make(map[int]struct{})
	}

	for {
		port, err := listenerPort()
		if err != nil {
			return 0, err
		}
		if _, ok := pm.used[port]; !ok {
			pm.used[port] = struct{}{}
			return port, nil
		}
	}
}

// RandomFreeAddress returns "localhost:<port>" address with free port.
func (pm *PortManager) RandomFreeAddress(t testing.TB) string {
	t.Helper()
	port, err := pm.GetFreePort()
	if err != nil {
		t.Fatalf("acquiring free port: %v", err)
	}
	return net.JoinHostPort("localhost", strconv.Itoa(port))
}

func listenerPort() (int, error) {
	l, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
