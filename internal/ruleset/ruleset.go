// Package ruleset loads tax sequences from YAML rule files and turns their rule entries into
// business rules the engine can evaluate.
package ruleset

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	validator "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/noah-isme/taxcore/internal/engine"
	"github.com/noah-isme/taxcore/internal/rules"
	"github.com/noah-isme/taxcore/internal/tax"
)

var validate = validator.New()

// ErrDuplicateSequence is returned when two sequences share a tax name and sequence number.
var ErrDuplicateSequence = errors.New("duplicate sequence")

// File is the document layout of a rule file.
type File struct {
	Sequences []SequenceSpec `yaml:"sequences" validate:"required,min=1,dive"`
}

// SequenceSpec is one tax sequence as written in a rule file.
type SequenceSpec struct {
	Nation   string     `yaml:"nation" validate:"required,len=2"`
	TaxCode  string     `yaml:"taxCode" validate:"required,min=2,max=3"`
	TaxType  string     `yaml:"taxType" validate:"required"`
	TaxPoint string     `yaml:"taxPoint" validate:"required,oneof=S D A"`
	Carrier  string     `yaml:"carrier" validate:"omitempty,len=2"`
	SeqNo    int        `yaml:"seqNo" validate:"gte=0"`
	Rules    []RuleSpec `yaml:"rules" validate:"required,min=1,dive"`
}

// TaxName returns the name the sequence contributes to.
func (s SequenceSpec) TaxName() tax.TaxName {
	return tax.TaxName{
		Nation:      s.Nation,
		TaxCode:     s.TaxCode,
		TaxType:     s.TaxType,
		TaxPointTag: tax.TaxPointTag(s.TaxPoint),
		Carrier:     s.Carrier,
	}
}

// RuleSpec is one rule entry. Kind selects the rule; the remaining fields are read only by the
// kinds that use them.
type RuleSpec struct {
	Kind        string      `yaml:"kind" validate:"required"`
	Loc         tax.LocZone `yaml:"loc"`
	Vendor      string      `yaml:"vendor"`
	Tag         string      `yaml:"tag"`
	Effective   string      `yaml:"effective"`
	Discontinue string      `yaml:"discontinue"`
	First       string      `yaml:"first"`
	Last        string      `yaml:"last"`
	Unit        string      `yaml:"unit"`
	Magnitude   int         `yaml:"magnitude"`
	ItemNo      int         `yaml:"itemNo"`
	ItemBefore  int         `yaml:"itemBefore"`
	ItemAfter   int         `yaml:"itemAfter"`
	Carrier     string      `yaml:"carrier"`
	Carriers    []string    `yaml:"carriers"`
	Units       []string    `yaml:"units"`
	Bases       []string    `yaml:"bases"`
	TaxCodes    []string    `yaml:"taxCodes"`
	FeeCodes    []string    `yaml:"feeCodes"`
	Currency    string      `yaml:"currency"`
	Amount      string      `yaml:"amount"`
	Percent     string      `yaml:"percent"`
	Min         string      `yaml:"min"`
	Max         string      `yaml:"max"`
	RoundTo     string      `yaml:"roundTo"`
	Direction   string      `yaml:"direction"`
	Result      *bool       `yaml:"result"`
	Message     string      `yaml:"message"`
}

// LoadFile reads and compiles a YAML rule file.
func LoadFile(path string, logger zerolog.Logger) ([]engine.Sequence, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ruleset: read %s: %w", path, err)
	}
	return Parse(raw, logger)
}

// Parse decodes, validates and compiles a YAML rule document. Errors in the document structure
// are returned. A rule entry whose own configuration is unusable is replaced by a failing dummy
// rule, so only the sequence holding it stops applying.
func Parse(raw []byte, logger zerolog.Logger) ([]engine.Sequence, error) {
	var file File
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("ruleset: decode: %w", err)
	}
	if err := validate.Struct(file); err != nil {
		return nil, fmt.Errorf("ruleset: validate: %w", err)
	}
	return Compile(file, logger)
}

// Compile turns validated sequence specs into engine sequences.
func Compile(file File, logger zerolog.Logger) ([]engine.Sequence, error) {
	type key struct {
		name  tax.TaxName
		seqNo int
	}
	seen := make(map[key]struct{}, len(file.Sequences))
	out := make([]engine.Sequence, 0, len(file.Sequences))
	for _, spec := range file.Sequences {
		name := spec.TaxName()
		k := key{name: name, seqNo: spec.SeqNo}
		if _, dup := seen[k]; dup {
			return nil, fmt.Errorf("ruleset: %w: %s seq %d", ErrDuplicateSequence, name, spec.SeqNo)
		}
		seen[k] = struct{}{}

		seq := engine.Sequence{Name: name, SeqNo: spec.SeqNo, Rules: make([]rules.BusinessRule, 0, len(spec.Rules))}
		for i, rs := range spec.Rules {
			rule, err := Build(rs, spec)
			if err != nil {
				logger.Warn().
					Err(err).
					Str("tax", name.String()).
					Int("seq_no", spec.SeqNo).
					Int("rule_index", i).
					Str("kind", rs.Kind).
					Msg("rule config unusable, sequence will not apply")
				rule = &rules.InvalidConfigRule{Message: fmt.Sprintf("INVALID %s RULE: %v", rs.Kind, err)}
			}
			seq.Rules = append(seq.Rules, rule)
		}
		out = append(out, seq)
	}
	return out, nil
}
