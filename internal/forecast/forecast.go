// Package forecast generates the personalized daily text. It is a pure
// function of the profile's birth data and the calendar day: no storage
// access, no side effects, same inputs produce the same text.
package forecast

import (
	"fmt"
	"hash/fnv"
	"time"
)

type sign struct {
	name       string
	startMonth time.Month
	startDay   int
}

// Zodiac boundaries ordered by start date within the year.
var signs = []sign{
	{"Козерог", time.January, 1},
	{"Водолей", time.January, 20},
	{"Рыбы", time.February, 19},
	{"Овен", time.March, 21},
	{"Телец", time.April, 20},
	{"Близнецы", time.May, 21},
	{"Рак", time.June, 21},
	{"Лев", time.July, 23},
	{"Дева", time.August, 23},
	{"Весы", time.September, 23},
	{"Скорпион", time.October, 23},
	{"Стрелец", time.November, 22},
	{"Козерог", time.December, 22},
}

var moods = []string{
	"день благоприятен для новых начинаний",
	"звёзды советуют не торопить события",
	"хороший момент, чтобы завершить давно отложенное",
	"энергия дня поддержит смелые решения",
	"день располагает к спокойствию и наблюдению",
	"сегодня стоит довериться интуиции",
	"удачный день для разговоров, которые ты откладывал(а)",
	"мелкие препятствия сегодня лучше обходить, а не штурмовать",
}

var focuses = []string{
	"В центре внимания — отношения с близкими.",
	"Обрати внимание на финансовые вопросы.",
	"Творческая энергия сегодня особенно сильна.",
	"Тело попросит отдыха — прислушайся.",
	"Вселенная подскажет ответ через случайную встречу.",
	"Самое важное произойдёт во второй половине дня.",
}

// ZodiacSign returns the zodiac sign for an ISO birth date. Unparseable
// input yields an empty string.
func ZodiacSign(birthDateISO string) string {
	t, err := time.Parse("2006-01-02", birthDateISO)
	if err != nil {
		return ""
	}

	result := signs[0].name
	for _, s := range signs {
		start := time.Date(t.Year(), s.startMonth, s.startDay, 0, 0, 0, 0, time.UTC)
		if !t.Before(start) {
			result = s.name
		}
	}

	return result
}

// Generate produces the daily forecast text for one user and one calendar
// day. Deterministic given the same inputs.
func Generate(name, birthDateISO, birthTime string, day time.Time) string {
	seed := fnv.New64a()
	_, _ = seed.Write([]byte(name))
	_, _ = seed.Write([]byte(birthDateISO))
	_, _ = seed.Write([]byte(birthTime))
	_, _ = seed.Write([]byte(day.Format("2006-01-02")))
	h := seed.Sum64()

	mood := moods[h%uint64(len(moods))]
	focus := focuses[(h/uint64(len(moods)))%uint64(len(focuses))]

	zodiac := ZodiacSign(birthDateISO)
	if zodiac == "" {
		return fmt.Sprintf("%s, %s. %s", name, mood, focus)
	}

	return fmt.Sprintf("%s (%s), %s. %s", name, zodiac, mood, focus)
}
