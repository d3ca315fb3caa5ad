package http

import (
	"errors"
	"strings"

	"kakeibo/internal/core"
	"kakeibo/internal/ledger"
)

// unset is shown for empty optional fields.
const unset = "未入力"

func orUnset(s string) string {
	if strings.TrimSpace(s) == "" {
		return unset
	}
	return s
}

// sanitizeInput trims and drops control characters except tab and newlines.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}

var userMessages = []struct {
	err error
	msg string
}{
	{core.ErrZeroAmount, "⚠️ 金額が 0 円のデータは追加できません"},
	{core.ErrInvalidAmount, "⚠️ 金額は 0 以上の整数で入力してください"},
	{core.ErrMissingDate, "⚠️ 支払日を入力してください"},
	{core.ErrInvalidDay, "⚠️ 支払日が正しくありません"},
	{core.ErrInvalidMonth, "⚠️ 年月が正しくありません"},
	{core.ErrUnknownPayer, "⚠️ 支払い者を選択してください"},
	{core.ErrUnknownBeneficiary, "⚠️ 購入品使用者を選択してください"},
	{core.ErrEmptyCategory, "⚠️ カテゴリを選択してください"},
	{core.ErrOtherNoteWithoutOther, "⚠️ その他のカテゴリはカテゴリが「その他」のときだけ入力できます"},
	{core.ErrMemoTooLong, "⚠️ メモは1000文字以内で入力してください"},
	{ledger.ErrNoSelection, "削除する行を選択してください"},
	{ledger.ErrIndexOutOfRange, "⚠️ 選択された行が見つかりません。表を更新してください"},
	{ledger.ErrCategoryExists, "⚠️ そのカテゴリは既に登録されています"},
	{ledger.ErrCategoryMissing, "⚠️ そのカテゴリは登録されていません"},
}

// userMessage maps a validation error to the text shown on the page.
func userMessage(err error) string {
	for _, m := range userMessages {
		if errors.Is(err, m.err) {
			return m.msg
		}
	}
	return "⚠️ 入力内容を確認してください"
}
