package worktime

// 休憩時間の法定基準です。
const (
	sixHoursMinutes  = 360
	nineHoursMinutes = 540

	minBreakOverSixHours  = 30
	minBreakOverNineHours = 45

	defaultOvertimeThresholdMinutes = 480
)

// WarningCode はコンプライアンス警告の種別です。表示文言の翻訳キーとしても使います。
type WarningCode string

const (
	WarningBreakUnder45Over9h WarningCode = "break_under_45_over_9h"
	WarningBreakUnder30Over6h WarningCode = "break_under_30_over_6h"
	WarningAutoCheckedOut     WarningCode = "auto_checked_out"
)

var defaultWarningMessages = map[WarningCode]string{
	WarningBreakUnder45Over9h: "Break under 45 minutes for more than 9 hours worked",
	WarningBreakUnder30Over6h: "Break under 30 minutes for more than 6 hours worked",
	WarningAutoCheckedOut:     "Automatically checked out",
}

// Warning は 1 件のコンプライアンス警告です。
type Warning struct {
	Code    WarningCode
	Message string
}

// DefaultMessage は翻訳が無い場合に使う英語の文言を返します。
func (c WarningCode) DefaultMessage() string {
	if msg, ok := defaultWarningMessages[c]; ok {
		return msg
	}
	return string(c)
}

// Evaluate はセッションの警告を返します。休憩警告、自動チェックアウト警告の順で、最大 2 件です。
// IsBreakCompliant は上流で計算済みの値をそのまま信頼し、どの文言を出すかだけを決めます。
func Evaluate(h WorkSessionHistory) []Warning {
	var warnings []Warning

	if h.NetMinutes != nil && *h.NetMinutes > 0 && !h.IsBreakCompliant {
		net := *h.NetMinutes
		switch {
		case net > nineHoursMinutes && h.BreakMinutes < minBreakOverNineHours:
			warnings = append(warnings, newWarning(WarningBreakUnder45Over9h))
		case net > sixHoursMinutes && h.BreakMinutes < minBreakOverSixHours:
			warnings = append(warnings, newWarning(WarningBreakUnder30Over6h))
		}
	}

	if h.AutoCheckedOut {
		warnings = append(warnings, newWarning(WarningAutoCheckedOut))
	}

	return warnings
}

// ComplianceWarnings は Evaluate の文言のみを返します。
func ComplianceWarnings(h WorkSessionHistory) []string {
	warnings := Evaluate(h)
	messages := make([]string, 0, len(warnings))
	for _, w := range warnings {
		messages = append(messages, w.Message)
	}
	return messages
}

func newWarning(code WarningCode) Warning {
	return Warning{Code: code, Message: code.DefaultMessage()}
}

// Policy は休憩適合・残業判定の基準です。
type Policy struct {
	OvertimeThresholdMinutes int
}

// DefaultPolicy は 1 日 8 時間を残業の閾値とする Policy を返します。
func DefaultPolicy() Policy {
	return Policy{OvertimeThresholdMinutes: defaultOvertimeThresholdMinutes}
}

// RequiredBreakMinutes は実労働分数に対して必要な最低休憩分数を返します。
func RequiredBreakMinutes(netMinutes int) int {
	switch {
	case netMinutes > nineHoursMinutes:
		return minBreakOverNineHours
	case netMinutes > sixHoursMinutes:
		return minBreakOverSixHours
	default:
		return 0
	}
}

// IsBreakCompliant は休憩分数が必要量を満たしているかを返します。
func (p Policy) IsBreakCompliant(netMinutes, breakMinutes int) bool {
	return breakMinutes >= RequiredBreakMinutes(netMinutes)
}

// IsOvertime は実労働分数が閾値を超えているかを返します。
func (p Policy) IsOvertime(netMinutes int) bool {
	threshold := p.OvertimeThresholdMinutes
	if threshold <= 0 {
		threshold = defaultOvertimeThresholdMinutes
	}
	return netMinutes > threshold
}
