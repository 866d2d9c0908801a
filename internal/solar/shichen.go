// ABOUTME: Earthly branch tables and the solar-time to shichen mapper
// ABOUTME: Sovereign hexagram numbers are a fixed literal table, never derived

package solar

import "time"

// Branch identifies one of the twelve earthly branches.
type Branch string

const (
	Zi   Branch = "zi"
	Chou Branch = "chou"
	Yin  Branch = "yin"
	Mao  Branch = "mao"
	Chen Branch = "chen"
	Si   Branch = "si"
	Wu   Branch = "wu"
	Wei  Branch = "wei"
	Shen Branch = "shen"
	You  Branch = "you"
	Xu   Branch = "xu"
	Hai  Branch = "hai"
)

const (
	// BranchCount is the number of double hours in a day.
	BranchCount = 12
	// BranchMinutes is the length of one double hour.
	BranchMinutes = 120
	// ziShiftMinutes aligns Zi, which starts at 23:00, to index 0.
	ziShiftMinutes = 60
	minutesPerDay  = 24 * 60
)

// branchOrder and sovereignHexagrams are index-aligned.
var branchOrder = [BranchCount]Branch{Zi, Chou, Yin, Mao, Chen, Si, Wu, Wei, Shen, You, Xu, Hai}

// sovereignHexagrams follows the waxing and waning of yang through the year:
// Fu, Lin, Tai, Da Zhuang, Guai, Qian, Gou, Dun, Pi, Guan, Bo, Kun.
var sovereignHexagrams = [BranchCount]int{24, 19, 11, 34, 43, 1, 44, 33, 12, 20, 23, 2}

var branchHanzi = [BranchCount]string{"子", "丑", "寅", "卯", "辰", "巳", "午", "未", "申", "酉", "戌", "亥"}

var branchAnimals = [BranchCount]string{
	"rat", "ox", "tiger", "rabbit", "dragon", "snake",
	"horse", "goat", "monkey", "rooster", "dog", "pig",
}

var branchElements = [BranchCount]string{
	"water", "earth", "wood", "wood", "earth", "fire",
	"fire", "earth", "metal", "metal", "earth", "water",
}

// ShichenData describes where a solar instant falls in the double-hour cycle.
type ShichenData struct {
	Index          int     `json:"index"`
	Branch         Branch  `json:"branch"`
	HexagramNumber int     `json:"hexagram_number"`
	Progress       float64 `json:"progress"`
	MinutesToNext  float64 `json:"minutes_to_next"`
}

// BranchInfo is the reference data for one earthly branch.
type BranchInfo struct {
	Index    int    `json:"index"`
	Branch   Branch `json:"branch"`
	Hanzi    string `json:"hanzi"`
	Animal   string `json:"animal"`
	Element  string `json:"element"`
	Hexagram int    `json:"hexagram"`
	// StartMinute is the solar clock minute of day the branch begins at.
	StartMinute int `json:"start_minute"`
}

// BranchAt returns the reference data for index, wrapping modulo 12.
func BranchAt(index int) BranchInfo {
	i := ((index % BranchCount) + BranchCount) % BranchCount
	return BranchInfo{
		Index:       i,
		Branch:      branchOrder[i],
		Hanzi:       branchHanzi[i],
		Animal:      branchAnimals[i],
		Element:     branchElements[i],
		Hexagram:    sovereignHexagrams[i],
		StartMinute: (i*BranchMinutes - ziShiftMinutes + minutesPerDay) % minutesPerDay,
	}
}

// Branches returns all twelve branches in cyclical order starting at Zi.
func Branches() []BranchInfo {
	out := make([]BranchInfo, BranchCount)
	for i := range out {
		out[i] = BranchAt(i)
	}
	return out
}

// Info returns the reference data for b. Unknown branches report ok=false.
func (b Branch) Info() (BranchInfo, bool) {
	for i, candidate := range branchOrder {
		if candidate == b {
			return BranchAt(i), true
		}
	}
	return BranchInfo{}, false
}

// Hexagram returns the sovereign hexagram number of b, or 0 if unknown.
func (b Branch) Hexagram() int {
	info, ok := b.Info()
	if !ok {
		return 0
	}
	return info.Hexagram
}

// ShichenFromSolarTime maps the local clock reading of solar onto a branch.
// Boundaries are closed on the start minute: 23:00 is Zi with progress 0,
// and 13:00 is the first minute of Wei.
func ShichenFromSolarTime(solarTime time.Time) ShichenData {
	minuteOfDay := solarTime.Hour()*60 + solarTime.Minute()
	adjusted := (minuteOfDay + ziShiftMinutes) % minutesPerDay

	index := adjusted / BranchMinutes
	within := adjusted % BranchMinutes

	return ShichenData{
		Index:          index,
		Branch:         branchOrder[index],
		HexagramNumber: sovereignHexagrams[index],
		Progress:       float64(within) / BranchMinutes,
		MinutesToNext:  float64(BranchMinutes - within),
	}
}
