package engine

import "time"

// TickReport is the outcome of one monitor tick.
type TickReport struct {
	Lifecycle LifecycleReport `json:"lifecycle"`
	Decayed   int             `json:"decayed"`
	Spawned   string          `json:"spawned,omitempty"`
}

// Tick runs one maintenance pass: lifecycle, idle decay and, in autonomous
// mode, a spawn attempt.
func (e *Engine) Tick() TickReport {
	var t TickReport
	t.Lifecycle = e.LifecycleTick()
	t.Decayed = e.Decay()

	e.mu.Lock()
	autonomous := e.autonomous
	e.mu.Unlock()
	if autonomous {
		if name, ok := e.Spawn(); ok {
			t.Spawned = name
		}
	}
	return t
}

// StartMonitor runs Tick every interval until Stop. onTick, if set, is called
// after each tick from the monitor goroutine. A slow tick delays the next one
// rather than overlapping it.
func (e *Engine) StartMonitor(interval time.Duration, onTick func(TickReport)) {
	if interval <= 0 {
		return
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				t := e.Tick()
				if onTick != nil {
					onTick(t)
				}
			case <-e.stopCh:
				return
			}
		}
	}()
}

// Stop shuts down the monitor and waits for an in-flight tick. Safe to call
// more than once.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stopCh) })
	e.wg.Wait()
}
