package swms

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// RiskRank is the ordinal severity of a job step. Lower values are more severe.
type RiskRank int

const (
	RiskUnknown RiskRank = 0
	RiskExtreme RiskRank = 1
	RiskHigh    RiskRank = 2
	RiskMedium  RiskRank = 3
	RiskLow     RiskRank = 4
)

type RGB struct {
	R, G, B uint8
}

func (c RGB) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

type RiskLevel struct {
	Rank  RiskRank `json:"rank"`
	Label string   `json:"label"`
	Color RGB      `json:"-"`
	Hex   string   `json:"color"`
}

var riskLevels = map[RiskRank]RiskLevel{
	RiskExtreme: {Rank: RiskExtreme, Label: "Extreme", Color: RGB{220, 38, 38}},
	RiskHigh:    {Rank: RiskHigh, Label: "High", Color: RGB{249, 115, 22}},
	RiskMedium:  {Rank: RiskMedium, Label: "Medium", Color: RGB{234, 179, 8}},
	RiskLow:     {Rank: RiskLow, Label: "Low", Color: RGB{16, 185, 129}},
}

// LookupRisk is the only place rank labels and colors are defined; the API,
// the PDF export and the posters all read from it. Unrecognised ranks
// read as Low.
func LookupRisk(r RiskRank) RiskLevel {
	level, ok := riskLevels[r]
	if !ok {
		level = riskLevels[RiskLow]
	}
	level.Hex = level.Color.Hex()
	return level
}

// RiskLevels returns the four known levels, most severe first.
func RiskLevels() []RiskLevel {
	out := make([]RiskLevel, 0, len(riskLevels))
	for r := RiskExtreme; r <= RiskLow; r++ {
		out = append(out, LookupRisk(r))
	}
	return out
}

func (r RiskRank) Valid() bool {
	return r >= RiskExtreme && r <= RiskLow
}

func (r RiskRank) Label() string {
	return LookupRisk(r).Label
}

func (r RiskRank) String() string {
	return strconv.Itoa(int(r))
}

func ParseRiskRank(s string) (RiskRank, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return RiskUnknown, fmt.Errorf("invalid risk rank %q: %w", s, err)
	}
	r := RiskRank(n)
	if !r.Valid() {
		return RiskUnknown, fmt.Errorf("risk rank %d out of range 1-4", n)
	}
	return r, nil
}

// Stored rows keep ranks as "1".."4".
func (r RiskRank) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

func (r *RiskRank) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var n int
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("risk rank must be a string or number: %s", data)
		}
		*r = RiskRank(n)
		return nil
	}
	if s == "" {
		*r = RiskUnknown
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid risk rank %q", s)
	}
	*r = RiskRank(n)
	return nil
}

func (r RiskRank) MarshalYAML() (interface{}, error) {
	return r.String(), nil
}

func (r *RiskRank) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := ParseRiskRank(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
