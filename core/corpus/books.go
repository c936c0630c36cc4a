package corpus

import "strings"

// BookInfo is a canonical book entry.
type BookInfo struct {
	Code  string // OSIS identifier
	Name  string // Hebrew name
	Order int    // 1-based position in the Tanakh
}

// Books lists the Tanakh in canonical order.
var Books = []BookInfo{
	{"Gen", "בראשית", 1},
	{"Exod", "שמות", 2},
	{"Lev", "ויקרא", 3},
	{"Num", "במדבר", 4},
	{"Deut", "דברים", 5},
	{"Josh", "יהושע", 6},
	{"Judg", "שופטים", 7},
	{"1Sam", "שמואל א", 8},
	{"2Sam", "שמואל ב", 9},
	{"1Kgs", "מלכים א", 10},
	{"2Kgs", "מלכים ב", 11},
	{"Isa", "ישעיהו", 12},
	{"Jer", "ירמיהו", 13},
	{"Ezek", "יחזקאל", 14},
	{"Hos", "הושע", 15},
	{"Joel", "יואל", 16},
	{"Amos", "עמוס", 17},
	{"Obad", "עובדיה", 18},
	{"Jonah", "יונה", 19},
	{"Mic", "מיכה", 20},
	{"Nah", "נחום", 21},
	{"Hab", "חבקוק", 22},
	{"Zeph", "צפניה", 23},
	{"Hag", "חגי", 24},
	{"Zech", "זכריה", 25},
	{"Mal", "מלאכי", 26},
	{"Ps", "תהלים", 27},
	{"Prov", "משלי", 28},
	{"Job", "איוב", 29},
	{"Song", "שיר השירים", 30},
	{"Ruth", "רות", 31},
	{"Lam", "איכה", 32},
	{"Eccl", "קהלת", 33},
	{"Esth", "אסתר", 34},
	{"Dan", "דניאל", 35},
	{"Ezra", "עזרא", 36},
	{"Neh", "נחמיה", 37},
	{"1Chr", "דברי הימים א", 38},
	{"2Chr", "דברי הימים ב", 39},
}

var booksByCode = func() map[string]BookInfo {
	m := make(map[string]BookInfo, len(Books))
	for _, b := range Books {
		m[strings.ToLower(b.Code)] = b
	}
	return m
}()

// LookupBook finds a canonical book by OSIS code, ignoring case.
func LookupBook(code string) (BookInfo, bool) {
	b, ok := booksByCode[strings.ToLower(code)]
	return b, ok
}

// IsTorah reports whether the book belongs to the five books of Moses.
func (b BookInfo) IsTorah() bool {
	return b.Order >= 1 && b.Order <= 5
}
