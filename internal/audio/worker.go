// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"runtime"
	"sync/atomic"

	"musualiser/internal/analysis"
	"musualiser/internal/frame"
	"musualiser/internal/handoff"
)

// Worker phases, as observed by the controller.
const (
	phaseStarting int32 = iota
	phaseParked
	phaseRunning
	phaseDraining
)

// worker is one capture session. Its channels are the only way the
// controller talks to it: kill asks it to leave, deviceChanged tells the
// controller to replace it, and done closes when the goroutine has exited.
type worker struct {
	id     int
	target Target

	kill          chan struct{}
	deviceChanged chan struct{}
	done          chan struct{}

	phase atomic.Int32
	err   error // written before done closes
}

func newWorker(id int, target Target) *worker {
	return &worker{
		id:            id,
		target:        target,
		kill:          make(chan struct{}),
		deviceChanged: make(chan struct{}, 1),
		done:          make(chan struct{}),
	}
}

// session holds everything one worker needs; it is copied from the
// controller at spawn time.
type session struct {
	backend Backend
	planner analysis.Planner
	sender  handoff.Sender
	gate    *Gate
	opts    Options
}

func (w *worker) run(s session) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(w.done)

	w.err = w.capture(s)
	switch {
	case w.err == nil:
		logger.Debugf("worker %d for %v exited", w.id, w.target)
	case IsFatal(w.err):
		logger.Errorf("worker %d: %v", w.id, w.err)
	default:
		logger.Warnf("worker %d: %v", w.id, w.err)
	}
}

func (w *worker) fail(op string, err error) error {
	return &SessionError{Op: op, Target: w.target, Err: err}
}

func (w *worker) capture(s session) error {
	w.phase.Store(phaseStarting)

	var boundID string
	if w.target.FollowsDefault() {
		id, err := s.backend.DefaultDeviceID()
		if err != nil {
			return w.fail(OpOpen, err)
		}
		boundID = id
	}

	client, err := s.backend.Open(w.target, s.opts.Format)
	if err != nil {
		return w.fail(OpOpen, err)
	}
	defer func() {
		if err := client.Close(); err != nil {
			logger.Warnf("worker %d: close client: %v", w.id, err)
		}
	}()

	rate := client.SampleRate()
	analyzer, err := analysis.NewAnalyzer(s.planner, rate, frame.WindowLength(rate, s.opts.AnalysisFrequency), s.opts.Window)
	if err != nil {
		return w.fail(OpPlan, err)
	}
	acc := frame.NewAccumulator(analyzer.WindowLen())
	buf := make([]byte, 0, 4*analyzer.WindowLen())

	logger.Infof("worker %d bound to %v (%s, %d Hz, window %d)", w.id, w.target, client.DeviceID(), rate, analyzer.WindowLen())

	if !w.resume(s.gate) {
		return nil
	}
	if err := client.Start(); err != nil {
		return w.fail(OpStart, err)
	}
	w.phase.Store(phaseRunning)

	for {
		for {
			window, ok := acc.Next()
			if !ok {
				break
			}
			if err := s.sender.Send(analyzer.Analyze(window)); err != nil && !errors.Is(err, handoff.ErrClosed) {
				logger.Warnf("worker %d: handoff: %v", w.id, err)
			}
		}

		if err := client.Wait(s.opts.BufferTimeout); err != nil {
			w.stop(client)
			return w.fail(OpWait, err)
		}
		buf, err = client.ReadAvailable(buf[:0])
		if err != nil {
			w.stop(client)
			return w.fail(OpRead, err)
		}
		acc.PushBytes(buf)
		if s.opts.Tap != nil {
			if err := s.opts.Tap.Capture(rate, buf); err != nil {
				logger.Debugf("worker %d: tap: %v", w.id, err)
			}
		}

		if boundID != "" {
			if id, err := s.backend.DefaultDeviceID(); err == nil && id != boundID {
				logger.Infof("worker %d: default device changed from %q to %q", w.id, boundID, id)
				w.stop(client)
				select {
				case w.deviceChanged <- struct{}{}:
				default:
				}
				w.phase.Store(phaseDraining)
				return nil
			}
		}

		if !s.gate.Playing() {
			w.stop(client)
			if !w.resume(s.gate) {
				return nil
			}
			acc.Reset()
			if err := client.Start(); err != nil {
				return w.fail(OpStart, err)
			}
			w.phase.Store(phaseRunning)
		}

		select {
		case <-w.kill:
			w.stop(client)
			return nil
		default:
		}
	}
}

// resume parks until the gate opens. It returns false when killed.
func (w *worker) resume(g *Gate) bool {
	w.phase.Store(phaseParked)
	return g.WaitPlaying(w.kill)
}

func (w *worker) stop(client Client) {
	if err := client.Stop(); err != nil {
		logger.Debugf("worker %d: stop stream: %v", w.id, err)
	}
}

func (w *worker) exited() bool {
	return closed(w.done)
}
