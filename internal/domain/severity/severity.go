package severity

import "strings"

// Level is the canonical, lowercase severity vocabulary shared by every screen.
type Level string

const (
	Critical Level = "critical"
	High     Level = "high"
	Medium   Level = "medium"
	Low      Level = "low"
	Info     Level = "info"
)

// All lists the levels from most to least severe.
var All = []Level{Critical, High, Medium, Low, Info}

// Parse maps any spelling seen from scanners or models onto a Level.
// SARIF levels (error/warning/note) follow the same mapping as the scan parsers.
func Parse(s string) (Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "critical", "crit":
		return Critical, true
	case "high", "error":
		return High, true
	case "medium", "moderate", "warning", "med":
		return Medium, true
	case "low", "note":
		return Low, true
	case "info", "informational", "none":
		return Info, true
	}
	return "", false
}

// Rank orders levels; higher is more severe. Unknown levels rank 0.
func (l Level) Rank() int {
	switch l {
	case Critical:
		return 5
	case High:
		return 4
	case Medium:
		return 3
	case Low:
		return 2
	case Info:
		return 1
	}
	return 0
}

// Counts value object
type Counts struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
	Info     int `json:"info"`
	Total    int `json:"total"`
}

// Add tallies one occurrence. Unknown levels are ignored.
func (c *Counts) Add(l Level) {
	switch l {
	case Critical:
		c.Critical++
	case High:
		c.High++
	case Medium:
		c.Medium++
	case Low:
		c.Low++
	case Info:
		c.Info++
	default:
		return
	}
	c.Total++
}

// Max returns the most severe level with a non-zero count.
func (c Counts) Max() (Level, bool) {
	switch {
	case c.Critical > 0:
		return Critical, true
	case c.High > 0:
		return High, true
	case c.Medium > 0:
		return Medium, true
	case c.Low > 0:
		return Low, true
	case c.Info > 0:
		return Info, true
	}
	return "", false
}
