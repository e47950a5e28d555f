package formatter

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/tektronix/behave/types"
)

type jsonStep struct {
	Keyword         string  `json:"keyword"`
	Text            string  `json:"text"`
	Status          string  `json:"status"`
	DurationSeconds float64 `json:"duration_seconds"`
	Location        string  `json:"location,omitempty"`
	Error           string  `json:"error,omitempty"`
}

type jsonScenario struct {
	Name     string      `json:"name"`
	Location string      `json:"location"`
	Tags     []string    `json:"tags,omitempty"`
	Status   string      `json:"status"`
	Steps    []*jsonStep `json:"steps"`
}

type jsonFeature struct {
	Name      string          `json:"name"`
	Location  string          `json:"location"`
	Tags      []string        `json:"tags,omitempty"`
	Status    string          `json:"status"`
	Scenarios []*jsonScenario `json:"scenarios"`
}

// JSON collects the whole run and writes a single JSON document on
// Close. Scenario and feature statuses are aggregated from their steps.
type JSON struct {
	w        io.Writer
	features []*jsonFeature
}

// NewJSON returns a JSON formatter writing to w.
func NewJSON(w io.Writer) *JSON {
	return &JSON{w: w}
}

func (j *JSON) URI(path string) {}

func (j *JSON) Feature(info FeatureInfo) {
	j.features = append(j.features, &jsonFeature{
		Name:     info.Name,
		Location: info.Location.String(),
		Tags:     tagStrings(info.Tags),
	})
}

func (j *JSON) Scenario(info ScenarioInfo) {
	feature := j.currentFeature()
	if feature == nil {
		return
	}
	feature.Scenarios = append(feature.Scenarios, &jsonScenario{
		Name:     info.Name,
		Location: info.Location.String(),
		Tags:     tagStrings(info.Tags),
	})
}

func (j *JSON) Step(info StepInfo) {
	scenario := j.currentScenario()
	if scenario == nil {
		return
	}
	scenario.Steps = append(scenario.Steps, &jsonStep{
		Keyword:         info.Keyword,
		Text:            info.Text,
		Status:          info.Status.String(),
		DurationSeconds: info.Duration.Seconds(),
		Location:        info.Location,
		Error:           info.ErrorMessage,
	})
}

func (j *JSON) Close() error {
	for _, feature := range j.features {
		var scenarioStatuses []types.Status
		for _, scenario := range feature.Scenarios {
			var stepStatuses []types.Status
			for _, step := range scenario.Steps {
				stepStatuses = append(stepStatuses, types.Status(step.Status))
			}
			status := types.CombineAll(stepStatuses)
			scenario.Status = status.String()
			scenarioStatuses = append(scenarioStatuses, status)
		}
		feature.Status = types.CombineAll(scenarioStatuses).String()
	}

	out, err := json.MarshalIndent(j.features, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding run document: %w", err)
	}
	_, err = fmt.Fprintln(j.w, string(out))
	return err
}

func (j *JSON) currentFeature() *jsonFeature {
	if len(j.features) == 0 {
		return nil
	}
	return j.features[len(j.features)-1]
}

func (j *JSON) currentScenario() *jsonScenario {
	feature := j.currentFeature()
	if feature == nil || len(feature.Scenarios) == 0 {
		return nil
	}
	return feature.Scenarios[len(feature.Scenarios)-1]
}

func tagStrings(tags []types.Tag) []string {
	if len(tags) == 0 {
		return nil
	}
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = string(t)
	}
	return out
}
