// Package render turns query results and errors into what the user sees. It
// is the only package that knows about display names and messages.
package render

import (
	"errors"
	"fmt"

	"github.com/jusunglee/hankyu-go/internal/auth"
	"github.com/jusunglee/hankyu-go/internal/feed"
	"github.com/jusunglee/hankyu-go/internal/models"
	"github.com/jusunglee/hankyu-go/internal/query"
)

// User-facing messages
const (
	MsgServiceEnded   = "本日の運行は終了しました"
	MsgNotLoaded      = "時刻表データが読み込まれていません。"
	MsgEnterTime      = "時刻を入力してください。"
	MsgBadTime        = "時刻はHH:MM形式で入力してください。"
	MsgBadStation     = "駅を選択してください。"
	MsgBadLimit       = "表示件数は1以上で指定してください。"
	MsgLoadFailed     = "時刻表データの読み込みに失敗しました。"
	MsgEnterPassword  = "パスワードを入力してください"
	MsgWrongPassword  = "パスワードが正しくありません"
	MsgAuthFailed     = "認証に失敗しました。もう一度お試しください。"
	MsgAuthInProgress = "認証中..."
	MsgUnexpected     = "エラーが発生しました。"
)

// LineInfo is how a line is labelled on screen
type LineInfo struct {
	Name  string
	Class string
}

var lineInfo = map[models.Line]LineInfo{
	models.Kyoto:      {Name: "京都線", Class: "kyoto"},
	models.Takarazuka: {Name: "宝塚線", Class: "takarazuka"},
	models.Kobe:       {Name: "神戸線", Class: "kobe"},
}

// Info returns the display info for l; unknown lines show their identifier
func Info(l models.Line) LineInfo {
	if info, ok := lineInfo[l]; ok {
		return info
	}
	return LineInfo{Name: string(l), Class: "other"}
}

// StationName is the Japanese name of a departure station
func StationName(s models.Station) string {
	if s == models.Umeda {
		return "大阪梅田"
	}
	return "十三"
}

// Card is one rendered departure
type Card struct {
	Class       string
	LineName    string
	Header      string
	Description string
}

// NewCard formats one departure
func NewCard(d models.Departure) Card {
	info := Info(d.Line)
	return Card{
		Class:       info.Class,
		LineName:    info.Name,
		Header:      fmt.Sprintf("%s 発 | %s番線", d.Time, d.Platform),
		Description: fmt.Sprintf("%s %s行き", d.Type, d.Destination),
	}
}

// Cards formats departures in order
func Cards(deps []models.Departure) []Card {
	out := make([]Card, 0, len(deps))
	for _, d := range deps {
		out = append(out, NewCard(d))
	}
	return out
}

// MessageFor picks the message shown for err. Each error kind has its own
// text so the user can tell a load failure from bad input or a bad password.
func MessageFor(err error) string {
	var (
		le *feed.LoadError
		fe *models.FormatError
		ae *auth.AuthError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &le):
		return MsgLoadFailed
	case errors.Is(err, query.ErrNoSnapshot):
		return MsgNotLoaded
	case errors.Is(err, query.ErrEmptyTime):
		return MsgEnterTime
	case errors.Is(err, query.ErrBadLimit):
		return MsgBadLimit
	case errors.As(err, &fe):
		return MsgBadTime
	case errors.Is(err, models.ErrUnknownStation):
		return MsgBadStation
	case errors.Is(err, auth.ErrEmptyPassword):
		return MsgEnterPassword
	case errors.Is(err, auth.ErrWrongPassword):
		return MsgWrongPassword
	case errors.As(err, &ae):
		return MsgAuthFailed
	}
	return MsgUnexpected
}
