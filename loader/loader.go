// Package loader discovers feature files and turns their YAML documents
// into the executable feature model.
package loader

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/tektronix/behave/model"
	"github.com/tektronix/behave/types"
)

// FeatureFileSuffix is the extension feature files are discovered by.
const FeatureFileSuffix = ".feature.yaml"

var (
	validatorOnce sync.Once
	validateInst  *validator.Validate
)

// validatorInstance configures and returns the shared validator for
// feature file schemas.
func validatorInstance() *validator.Validate {
	validatorOnce.Do(func() {
		v := validator.New()

		_ = v.RegisterValidation("step_line", func(fl validator.FieldLevel) bool {
			_, _, err := model.ParseStepLine(fl.Field().String())
			return err == nil
		})

		validateInst = v
	})
	return validateInst
}

// featureFile is the YAML schema of one feature document.
type featureFile struct {
	Feature     string          `yaml:"feature" validate:"required"`
	Description string          `yaml:"description"`
	Tags        []string        `yaml:"tags"`
	Background  []stepEntry     `yaml:"background" validate:"dive"`
	Scenarios   []scenarioEntry `yaml:"scenarios" validate:"dive"`
}

type scenarioEntry struct {
	Scenario string      `yaml:"scenario" validate:"required"`
	Tags     []string    `yaml:"tags"`
	Steps    []stepEntry `yaml:"steps" validate:"required,min=1,dive"`
}

type stepEntry struct {
	Step  string      `yaml:"step" validate:"required,step_line"`
	Text  string      `yaml:"text"`
	Table *tableEntry `yaml:"table"`
}

type tableEntry struct {
	Headings []string   `yaml:"headings" validate:"required,min=1"`
	Rows     [][]string `yaml:"rows"`
}

// Config contains loader configuration.
type Config struct {
	Log zerolog.Logger
}

// Loader loads feature files into the model.
type Loader struct {
	log zerolog.Logger
}

// New creates a loader.
func New(cfg Config) *Loader {
	return &Loader{log: cfg.Log}
}

// DiscoverFeatureFiles walks root and returns every feature file under
// it, sorted for a stable run order.
func DiscoverFeatureFiles(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), FeatureFileSuffix) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discovering feature files: %w", err)
	}
	sort.Strings(paths)
	return paths, nil
}

// LoadFeatures loads every path in order.
func (l *Loader) LoadFeatures(paths []string) ([]*model.Feature, error) {
	features := make([]*model.Feature, 0, len(paths))
	for _, path := range paths {
		feature, err := l.LoadFeatureFile(path)
		if err != nil {
			return nil, err
		}
		features = append(features, feature)
	}
	return features, nil
}

// LoadFeatureFile reads, validates and converts one feature document.
func (l *Loader) LoadFeatureFile(path string) (*model.Feature, error) {
	l.log.Debug().Str("path", path).Msg("Reading feature file")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading feature file: %w", err)
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parsing feature file %s: %w", path, err)
	}
	var file featureFile
	if err := root.Decode(&file); err != nil {
		return nil, fmt.Errorf("parsing feature file %s: %w", path, err)
	}

	if err := validatorInstance().Struct(&file); err != nil {
		return nil, fmt.Errorf("invalid feature file %s: %s", path, validationMessage(err))
	}

	return buildFeature(path, &file, documentNode(&root))
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		first := verrs[0]
		return fmt.Sprintf("field %s fails %q", first.Namespace(), first.Tag())
	}
	return err.Error()
}

// buildFeature converts the decoded schema into the model, resolving
// And/But step types along the way and cloning background steps into
// every scenario.
func buildFeature(path string, file *featureFile, doc *yaml.Node) (*model.Feature, error) {
	feature := model.NewFeature(
		file.Feature,
		strings.TrimRight(file.Description, "\n"),
		types.Location{File: path, Line: nodeLine(doc)},
		types.NormalizeTags(file.Tags),
	)

	backgroundNode := mappingValue(doc, "background")
	background := make([]*model.Step, 0, len(file.Background))
	previousType := ""
	for i, entry := range file.Background {
		step, err := buildStep(path, entry, sequenceItem(backgroundNode, i), &previousType)
		if err != nil {
			return nil, fmt.Errorf("feature file %s: background step %d: %w", path, i+1, err)
		}
		background = append(background, step)
	}
	feature.SetBackground(background)
	backgroundType := previousType

	scenariosNode := mappingValue(doc, "scenarios")
	for i, entry := range file.Scenarios {
		scenarioNode := sequenceItem(scenariosNode, i)
		stepsNode := mappingValue(scenarioNode, "steps")

		steps := make([]*model.Step, 0, len(background)+len(entry.Steps))
		for _, bg := range background {
			steps = append(steps, bg.Clone())
		}
		previousType := backgroundType
		for j, stepEntry := range entry.Steps {
			step, err := buildStep(path, stepEntry, sequenceItem(stepsNode, j), &previousType)
			if err != nil {
				return nil, fmt.Errorf("feature file %s: scenario %q step %d: %w", path, entry.Scenario, j+1, err)
			}
			steps = append(steps, step)
		}

		scenario := model.NewScenario(
			entry.Scenario,
			types.Location{File: path, Line: nodeLine(scenarioNode)},
			types.NormalizeTags(entry.Tags),
			steps...,
		)
		feature.AddScenario(scenario)
	}

	return feature, nil
}

func buildStep(path string, entry stepEntry, node *yaml.Node, previousType *string) (*model.Step, error) {
	keyword, text, err := model.ParseStepLine(entry.Step)
	if err != nil {
		return nil, err
	}
	stepType := model.ResolveStepType(keyword, *previousType)
	*previousType = stepType

	step := model.NewStep(stepType, keyword, text, types.Location{File: path, Line: nodeLine(node)})
	if entry.Text != "" {
		step.SetDocString(strings.TrimRight(entry.Text, "\n"))
	}
	if entry.Table != nil {
		table, err := model.NewTable(entry.Table.Headings, entry.Table.Rows)
		if err != nil {
			return nil, err
		}
		step.SetTable(table)
	}
	return step, nil
}

// documentNode unwraps the document to its top-level mapping.
func documentNode(root *yaml.Node) *yaml.Node {
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		return root.Content[0]
	}
	return root
}

// mappingValue returns the value node of key inside a mapping node.
func mappingValue(node *yaml.Node, key string) *yaml.Node {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

func sequenceItem(node *yaml.Node, i int) *yaml.Node {
	if node == nil || node.Kind != yaml.SequenceNode || i >= len(node.Content) {
		return nil
	}
	return node.Content[i]
}

func nodeLine(node *yaml.Node) int {
	if node == nil {
		return 0
	}
	return node.Line
}
