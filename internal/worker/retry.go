package worker

import "time"

// Backoff выдает паузу перед следующим проходом после серии неудач подряд.
// Пауза удваивается от Base и упирается в Cap; счетчик неудач ведет цикл
// свипера, Backoff состояния не держит.
type Backoff struct {
	Base time.Duration
	Cap  time.Duration
}

// Delay returns the pause after the given number of consecutive failures.
func (b Backoff) Delay(failures int) time.Duration {
	base := b.Base
	if base <= 0 {
		base = time.Second
	}

	d := base
	for i := 1; i < failures; i++ {
		if b.Cap > 0 && d >= b.Cap {
			break
		}
		d *= 2
	}
	if b.Cap > 0 && d > b.Cap {
		d = b.Cap
	}
	return d
}
