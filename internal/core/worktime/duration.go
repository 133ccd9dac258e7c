package worktime

import "time"

// CalculateNetMinutes は休憩を差し引いた実労働分数を返します。
// checkOut が nil (勤務中) またはいずれかの時刻が解釈できない場合は nil を返します。
// 結果は 0 未満になりません。現在時刻は参照しません。
func CalculateNetMinutes(checkIn string, checkOut *string, breakMinutes int) *int {
	if checkOut == nil {
		return nil
	}

	in, ok := parseInstant(checkIn)
	if !ok {
		return nil
	}
	out, ok := parseInstant(*checkOut)
	if !ok {
		return nil
	}

	return netMinutes(in, out, breakMinutes)
}

// NetMinutes は CalculateNetMinutes の time.Time 版です。ゼロ値の時刻は解釈不能な時刻として扱います。
func NetMinutes(checkIn time.Time, checkOut *time.Time, breakMinutes int) *int {
	if checkOut == nil || checkIn.IsZero() || checkOut.IsZero() {
		return nil
	}
	return netMinutes(checkIn, *checkOut, breakMinutes)
}

func netMinutes(in, out time.Time, breakMinutes int) *int {
	net := floorMinutes(out.Sub(in)) - breakMinutes
	if net < 0 {
		net = 0
	}
	return &net
}

// BreakDuration は休憩 1 回分の分数 (切り捨て) を返します。
func BreakDuration(start, end time.Time) int {
	minutes := floorMinutes(end.Sub(start))
	if minutes < 0 {
		return 0
	}
	return minutes
}

// BreakMinutes は休憩の合計分数を返します。終了していない休憩は now までを計上します。
func BreakMinutes(breaks []WorkSessionBreak, now time.Time) int {
	total := 0
	for _, b := range breaks {
		end := now
		if b.EndedAt != nil {
			end = *b.EndedAt
		}
		total += BreakDuration(b.StartedAt, end)
	}
	return total
}

// floorMinutes は負の値も含めて -Inf 方向に丸めた分数を返します。
func floorMinutes(d time.Duration) int {
	minutes := d / time.Minute
	if d%time.Minute < 0 {
		minutes--
	}
	return int(minutes)
}
