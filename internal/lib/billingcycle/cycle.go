// Package billingcycle содержит арифметику дат для регулярных списаний:
// сдвиг даты на один период и поиск ближайшей даты списания после "сейчас".
//
// Пакет не делает ввода-вывода и не читает часы сам: текущий момент
// всегда передаётся вызывающей стороной, поэтому функции безопасно
// вызывать конкурентно.
package billingcycle

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Cycle единица периода списания.
type Cycle string

const (
	// Daily списание раз в N дней.
	Daily Cycle = "daily"
	// Weekly списание раз в N недель.
	Weekly Cycle = "weekly"
	// Monthly списание раз в N календарных месяцев.
	Monthly Cycle = "monthly"
	// Yearly списание раз в N календарных лет.
	Yearly Cycle = "yearly"
)

// MaxOccurrences ограничивает количество дат, которое возвращает Occurrences.
const MaxOccurrences = 1000

// ErrInvalidCycle возвращается для значения, не входящего в перечисление Cycle.
var ErrInvalidCycle = errors.New("invalid billing cycle")

// ParseCycle разбирает строковое значение периода (регистр не важен).
func ParseCycle(s string) (Cycle, error) {
	c := Cycle(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidCycle, s)
	}
	return c, nil
}

// Valid сообщает, входит ли значение в перечисление.
func (c Cycle) Valid() bool {
	switch c {
	case Daily, Weekly, Monthly, Yearly:
		return true
	}
	return false
}

func (c Cycle) String() string {
	return string(c)
}

// Advance сдвигает дату ровно на repeatEvery единиц периода.
//
// Месяцы и годы прибавляются через time.Time.AddDate, поэтому
// несуществующий день переносится в следующий месяц:
// 31.01.2024 + 1 месяц = 02.03.2024, 31.01.2023 + 1 месяц = 03.03.2023.
// Значение repeatEvery <= 0 считается равным 1.
func Advance(date time.Time, cycle Cycle, repeatEvery int) (time.Time, error) {
	n := normalizeRepeat(repeatEvery)
	switch cycle {
	case Daily:
		return date.AddDate(0, 0, n), nil
	case Weekly:
		return date.AddDate(0, 0, 7*n), nil
	case Monthly:
		return date.AddDate(0, n, 0), nil
	case Yearly:
		return date.AddDate(n, 0, 0), nil
	default:
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidCycle, string(cycle))
	}
}

// NextOnOrAfter возвращает первую дату, достижимую из from целым числом
// сдвигов Advance, которая строго позже now.
//
// Сравнение идёт только по датам: from и now приводятся к полуночи в
// часовом поясе from. Если from уже в будущем, он возвращается без
// сдвигов. При догоняющем пересчёте from должен быть сохранённой
// устаревшей датой списания, а не датой начала подписки.
func NextOnOrAfter(from time.Time, cycle Cycle, repeatEvery int, now time.Time) (time.Time, error) {
	if !cycle.Valid() {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidCycle, string(cycle))
	}
	next := Midnight(from)
	today := Midnight(now.In(from.Location()))

	var err error
	for !next.After(today) {
		next, err = Advance(next, cycle, repeatEvery)
		if err != nil {
			return time.Time{}, err
		}
	}
	return next, nil
}

// Occurrences перечисляет даты списаний, начиная с from, попадающие в
// отрезок [windowStart, windowEnd]. Результат ограничен MaxOccurrences.
func Occurrences(from time.Time, cycle Cycle, repeatEvery int, windowStart, windowEnd time.Time) ([]time.Time, error) {
	if !cycle.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCycle, string(cycle))
	}
	start := Midnight(windowStart.In(from.Location()))
	end := Midnight(windowEnd.In(from.Location()))
	if end.Before(start) {
		return nil, nil
	}

	var result []time.Time
	cur := Midnight(from)
	for !cur.After(end) && len(result) < MaxOccurrences {
		if !cur.Before(start) {
			result = append(result, cur)
		}
		next, err := Advance(cur, cycle, repeatEvery)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return result, nil
}

// Midnight отбрасывает время суток, сохраняя часовой пояс.
func Midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func normalizeRepeat(n int) int {
	if n < 1 {
		return 1
	}
	return n
}
