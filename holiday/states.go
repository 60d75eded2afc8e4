package holiday

// National selects holidays observed in every state.
const National = "NATIONAL"

var stateNames = map[string]string{
	"BW":     "Baden-Württemberg",
	"BY":     "Bayern",
	"BE":     "Berlin",
	"BB":     "Brandenburg",
	"HB":     "Bremen",
	"HH":     "Hamburg",
	"HE":     "Hessen",
	"MV":     "Mecklenburg-Vorpommern",
	"NI":     "Niedersachsen",
	"NW":     "Nordrhein-Westfalen",
	"RP":     "Rheinland-Pfalz",
	"SL":     "Saarland",
	"SN":     "Sachsen",
	"ST":     "Sachsen-Anhalt",
	"SH":     "Schleswig-Holstein",
	"TH":     "Thüringen",
	National: "Bundesweit",
}

var stateOrder = []string{
	"BW", "BY", "BE", "BB", "HB", "HH", "HE", "MV",
	"NI", "NW", "RP", "SL", "SN", "ST", "SH", "TH", National,
}

// ValidStateCode reports whether code is a known state code.
func ValidStateCode(code string) bool {
	_, ok := stateNames[code]
	return ok
}

// StateCodes returns every known code, NATIONAL last.
func StateCodes() []string {
	out := make([]string, len(stateOrder))
	copy(out, stateOrder)
	return out
}

// StateName returns the display name of code, or "" when unknown.
func StateName(code string) string {
	return stateNames[code]
}
