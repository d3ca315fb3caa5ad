package core

// OtherCategory is the catch-all category; only entries filed under it may
// carry an other-category note.
const OtherCategory = "その他"

// DefaultCategories is the category list a fresh ledger starts with.
func DefaultCategories() []string {
	return []string{
		"食費", "飲料", "交通費", "娯楽", "日用品", "家賃", "スポーツ", "衣類", "交際費", "光熱費", "医療費",
		"サプリメント", "外食", "通信費", "漫画", "精密機器", "サブスク", "カフェ", "本", "手数料", OtherCategory,
	}
}

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string
	Amount Money
}

// MonthOverview is a compact summary for a specific year+month.
type MonthOverview struct {
	Year       int
	Month      int // 1-12
	Total      Money
	Count      int
	ByCategory []CategoryAmount
}

// Summarize totals the entries of one month by category, in first-seen order.
func Summarize(entries []LedgerEntry, year, month int) MonthOverview {
	ov := MonthOverview{Year: year, Month: month}
	idx := map[string]int{}
	for _, e := range EntriesForMonth(entries, year, month) {
		amount := e.Amount.Yen
		if amount < 0 {
			amount = 0
		}
		name := e.Category
		if name == "" {
			name = "(未分類)"
		}
		i, ok := idx[name]
		if !ok {
			i = len(ov.ByCategory)
			idx[name] = i
			ov.ByCategory = append(ov.ByCategory, CategoryAmount{Name: name})
		}
		ov.ByCategory[i].Amount.Yen += amount
		ov.Total.Yen += amount
		ov.Count++
	}
	return ov
}
