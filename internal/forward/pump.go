// Package forward moves traffic between the two legs of a resolved route.
package forward

import (
	"io"
	"sync"

	"github.com/pkg/errors"

	"dev.c0redev.nfchain/internal/proto"
)

// Side: one leg of a pump. Read returns io.EOF on a clean end.
type Side[T any] interface {
	Read() (T, error)
	Write(T) error
	Close() error
}

// Finisher: a side that announces end of stream before closing.
type Finisher interface {
	Finish() error
}

// Stats: payload bytes moved in each direction.
type Stats struct {
	AtoB int64
	BtoA int64
}

type readResult[T any] struct {
	v   T
	err error
}

// Pump races reads from a and b, writing each item to the opposite side,
// until either side ends. Both sides are closed on return and both reader
// goroutines have exited. A clean end returns a nil error.
func Pump[T any](a, b Side[T]) (Stats, error) {
	done := make(chan struct{})
	fromA := make(chan readResult[T])
	fromB := make(chan readResult[T])
	var wg sync.WaitGroup
	wg.Add(2)
	go readLoop(a, fromA, done, &wg)
	go readLoop(b, fromB, done, &wg)

	var st Stats
	err := func() error {
		for {
			select {
			case r := <-fromA:
				if r.err != nil {
					return end(b, r.err)
				}
				if err := b.Write(r.v); err != nil {
					return err
				}
				st.AtoB += int64(sizeOf(r.v))
			case r := <-fromB:
				if r.err != nil {
					return end(a, r.err)
				}
				if err := a.Write(r.v); err != nil {
					return err
				}
				st.BtoA += int64(sizeOf(r.v))
			}
		}
	}()
	close(done)
	a.Close()
	b.Close()
	wg.Wait()
	return st, err
}

func readLoop[T any](s Side[T], out chan<- readResult[T], done <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()
	for {
		v, err := s.Read()
		select {
		case out <- readResult[T]{v: v, err: err}:
		case <-done:
			return
		}
		if err != nil {
			return
		}
	}
}

// end handles a read error from one side; other gets its end frame on EOF.
func end[T any](other Side[T], err error) error {
	if !errors.Is(err, io.EOF) {
		return err
	}
	if f, ok := other.(Finisher); ok {
		f.Finish()
	}
	return nil
}

func sizeOf(v interface{}) int {
	switch x := v.(type) {
	case []byte:
		return len(x)
	case *proto.Frame:
		if x == nil {
			return 0
		}
		return len(x.Body)
	}
	return 0
}
