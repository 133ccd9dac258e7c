package worktime

import (
	"math"
	"sort"
	"time"
)

const week = 7 * 24 * time.Hour

// WeekDays は date を含む月曜始まりの 1 週間を返します。各日付は date のロケーションでの 0 時です。
// 日曜日は前の月曜日から始まる週の 7 日目として扱います。
func WeekDays(date time.Time) [7]time.Time {
	weekday := int(date.Weekday())
	offset := 1 - weekday
	if weekday == 0 {
		offset = -6
	}

	loc := date.Location()
	var days [7]time.Time
	for i := range days {
		days[i] = time.Date(date.Year(), date.Month(), date.Day()+offset+i, 0, 0, 0, 0, loc)
	}
	return days
}

// WeekNumber は ISO-8601 の週番号 (1〜53) を返します。
// date を同じ週の木曜日に寄せ、その年の最初の木曜日からの週数を数えます。
func WeekNumber(date time.Time) int {
	target := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	dayNr := (int(target.Weekday()) + 6) % 7
	target = target.AddDate(0, 0, -dayNr+3)

	firstThursday := time.Date(target.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	if firstThursday.Weekday() != time.Thursday {
		shift := (int(time.Thursday) - int(firstThursday.Weekday()) + 7) % 7
		firstThursday = firstThursday.AddDate(0, 0, shift)
	}

	return 1 + int(math.Round(float64(target.Sub(firstThursday))/float64(week)))
}

// WeekBucket は週単位に集計した履歴です。
type WeekBucket struct {
	Year       int
	Week       int
	Start      time.Time
	Histories  []WorkSessionHistory
	NetMinutes int
}

// GroupByWeek は履歴を ISO 週ごとに分け、週の開始日順に返します。日付が解釈できない履歴は除外します。
func GroupByWeek(histories []WorkSessionHistory) []WeekBucket {
	index := make(map[time.Time]int)
	var buckets []WeekBucket

	for _, h := range histories {
		date, err := time.Parse(time.DateOnly, h.Date)
		if err != nil {
			continue
		}
		start := WeekDays(date)[0]

		i, ok := index[start]
		if !ok {
			year, _ := date.ISOWeek()
			buckets = append(buckets, WeekBucket{Year: year, Week: WeekNumber(date), Start: start})
			i = len(buckets) - 1
			index[start] = i
		}

		buckets[i].Histories = append(buckets[i].Histories, h)
		if h.NetMinutes != nil {
			buckets[i].NetMinutes += *h.NetMinutes
		}
	}

	sort.Slice(buckets, func(a, b int) bool {
		return buckets[a].Start.Before(buckets[b].Start)
	})
	return buckets
}
