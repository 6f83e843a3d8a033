// Package beep computes when interval beeps are due.
//
// All values are elapsed stopwatch milliseconds. The functions are pure: they
// never read a wall clock and never emit anything, so the stopwatch decides
// when to call them and what to publish.
package beep

// NoBeep is the sentinel schedule meaning no beep will ever fire.
const NoBeep int64 = 0

// ComputeNextBeepAt returns the next interval-aligned point strictly after a
// resume at elapsed. An elapsed time that sits exactly on a boundary does not
// beep again; the following boundary is returned instead.
//
// Call it only when the stopwatch starts or the interval changes while
// running. Calling it every tick would keep pushing the schedule forward and
// no beep would ever fire.
func ComputeNextBeepAt(elapsed, interval int64) int64 {
	if interval <= 0 {
		return NoBeep
	}
	if elapsed <= 0 {
		return interval
	}
	remainder := elapsed % interval
	if remainder == 0 {
		return elapsed + interval
	}
	return elapsed - remainder + interval
}

// IsBeepDue reports whether elapsed has reached or passed nextBeepAt.
// Ticks may overshoot the exact millisecond, hence >= rather than ==.
func IsBeepDue(elapsed, nextBeepAt int64) bool {
	return nextBeepAt != NoBeep && elapsed >= nextBeepAt
}

// Advance returns the schedule following nextBeepAt. It steps from the
// scheduled time, not from the elapsed time the beep was detected at, so late
// ticks never shift the grid.
func Advance(nextBeepAt, interval int64) int64 {
	if interval <= 0 || nextBeepAt == NoBeep {
		return NoBeep
	}
	return nextBeepAt + interval
}
