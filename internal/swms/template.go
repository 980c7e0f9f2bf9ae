package swms

// Template is an immutable catalog entry for a common construction activity.
type Template struct {
	Key          string   `json:"key" yaml:"key"`
	Category     string   `json:"category" yaml:"category"`
	Name         string   `json:"name" yaml:"name"`
	Preparation  string   `json:"preparation" yaml:"preparation"`
	Hazards      string   `json:"hazards" yaml:"hazards"`
	InitialRisk  RiskRank `json:"initialRisk" yaml:"initialRisk"`
	Controls     string   `json:"controls" yaml:"controls"`
	ResidualRisk RiskRank `json:"residualRisk" yaml:"residualRisk"`
	Responsible  string   `json:"responsible" yaml:"responsible"`
}

// Step copies every template field into a new job step with the given id.
func (t Template) Step(id int64) JobStep {
	return JobStep{
		ID:           id,
		Name:         t.Name,
		Preparation:  t.Preparation,
		Hazards:      t.Hazards,
		InitialRisk:  t.InitialRisk,
		Controls:     t.Controls,
		ResidualRisk: t.ResidualRisk,
		Responsible:  t.Responsible,
	}
}

// BlankStep is a custom step: empty text, both ranks Medium.
func BlankStep(id int64) JobStep {
	return JobStep{
		ID:           id,
		InitialRisk:  RiskMedium,
		ResidualRisk: RiskMedium,
	}
}
