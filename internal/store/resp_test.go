package store

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// fakeRedis habla lo justo de RESP2 para PING, SET, GET, MGET y DEL.
type fakeRedis struct {
	ln net.Listener

	mu   sync.Mutex
	data map[string]string
	ttl  map[string]string // "EX 600", "PX 1500"
}

func newFakeRedis(t *testing.T) *fakeRedis {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	f := &fakeRedis{ln: ln, data: map[string]string{}, ttl: map[string]string{}}
	go f.serve()
	t.Cleanup(func() { _ = ln.Close() })
	return f
}

func (f *fakeRedis) Addr() string { return f.ln.Addr().String() }

func (f *fakeRedis) get(key string) (val, ttl string, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	val, ok = f.data[key]
	return val, f.ttl[key], ok
}

func (f *fakeRedis) serve() {
	for {
		conn, err := f.ln.Accept()
		if err != nil {
			return
		}
		go f.handle(conn)
	}
}

func (f *fakeRedis) handle(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	w := bufio.NewWriter(conn)
	for {
		args, err := readCommand(r)
		if err != nil {
			return
		}
		f.reply(w, args)
		if r.Buffered() == 0 {
			if err := w.Flush(); err != nil {
				return
			}
		}
	}
}

func (f *fakeRedis) reply(w *bufio.Writer, args []string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch strings.ToUpper(args[0]) {
	case "HELLO":
		w.WriteString("-ERR unknown command 'HELLO'\r\n")
	case "PING":
		w.WriteString("+PONG\r\n")
	case "SET":
		f.data[args[1]] = args[2]
		f.ttl[args[1]] = strings.Join(args[3:], " ")
		w.WriteString("+OK\r\n")
	case "GET":
		writeBulk(w, f.data, args[1])
	case "MGET":
		fmt.Fprintf(w, "*%d\r\n", len(args)-1)
		for _, k := range args[1:] {
			writeBulk(w, f.data, k)
		}
	case "DEL":
		n := 0
		for _, k := range args[1:] {
			if _, ok := f.data[k]; ok {
				delete(f.data, k)
				delete(f.ttl, k)
				n++
			}
		}
		fmt.Fprintf(w, ":%d\r\n", n)
	default:
		w.WriteString("+OK\r\n")
	}
}

func writeBulk(w *bufio.Writer, data map[string]string, key string) {
	v, ok := data[key]
	if !ok {
		w.WriteString("$-1\r\n")
		return
	}
	fmt.Fprintf(w, "$%d\r\n%s\r\n", len(v), v)
}

func readCommand(r *bufio.Reader) ([]string, error) {
	line, err := readLine(r)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(line, "*") {
		return nil, fmt.Errorf("unexpected line %q", line)
	}
	n, err := strconv.Atoi(line[1:])
	if err != nil || n < 1 {
		return nil, fmt.Errorf("bad array header %q", line)
	}
	args := make([]string, 0, n)
	for i := 0; i < n; i++ {
		hdr, err := readLine(r)
		if err != nil {
			return nil, err
		}
		size, err := strconv.Atoi(strings.TrimPrefix(hdr, "$"))
		if err != nil {
			return nil, fmt.Errorf("bad bulk header %q", hdr)
		}
		buf := make([]byte, size+2)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, err
		}
		args = append(args, string(buf[:size]))
	}
	return args, nil
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
