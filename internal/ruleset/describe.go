package ruleset

import (
	"fmt"
	"io"

	"github.com/noah-isme/taxcore/internal/engine"
	"github.com/noah-isme/taxcore/internal/tax"
)

// Describe writes every sequence followed by the description of each of its rules.
func Describe(w io.Writer, seqs []engine.Sequence, svc tax.Services) error {
	for _, seq := range seqs {
		if _, err := fmt.Fprintf(w, "%s/%s SEQ %d\n", seq.Name, seq.Name.TaxPointTag, seq.SeqNo); err != nil {
			return err
		}
		for i, rule := range seq.Rules {
			if _, err := fmt.Fprintf(w, "  %2d %-32s %s\n", i+1, rule.ID(), rule.Description(svc)); err != nil {
				return err
			}
		}
	}
	return nil
}
