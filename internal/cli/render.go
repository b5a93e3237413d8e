package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"

	"github.com/makerwatch/chieftally/chief"
)

// renderText prints the ranked proposals with the hat highlighted, followed
// by each proposal's voter breakdown.
func renderText(w io.Writer, s *chief.Snapshot) error {
	if len(s.Results) == 0 {
		_, err := fmt.Fprintln(w, "no active votes found")

		return err
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"#", "Proposal", "Weight", ""})
	table.SetBorder(false)
	table.SetAutoFormatHeaders(false)
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_LEFT,
	})

	for i, entry := range s.Results {
		marker := ""
		if entry.Proposal == s.Hat {
			marker = "<- hat"
		}
		table.Append([]string{
			fmt.Sprintf("%d", i+1),
			entry.Proposal.Hex(),
			entry.Weight.String(),
			marker,
		})
	}
	table.Render()

	for i, entry := range s.Results {
		if _, err := fmt.Fprintf(w, "\n%d. %s  %s\n", i+1, entry.Proposal.Hex(), entry.Weight.String()); err != nil {
			return err
		}
		if spell, ok := s.Spells[entry.Proposal]; ok {
			if _, err := fmt.Fprintf(w, "   spell: %s %s %v\n", spell.Name, spell.Desc, spell.Args); err != nil {
				return err
			}
		}
		for _, stake := range chief.VotersFor(entry.Proposal, s.Voters) {
			if _, err := fmt.Fprintf(w, "   %s  %s\n", stake.Address.Hex(), stake.Weight.String()); err != nil {
				return err
			}
		}
	}

	return nil
}

// orderedObject marshals as a JSON object whose keys keep their insertion
// order, which encoding/json's maps do not.
type orderedObject []field

type field struct {
	key   string
	value any
}

func (o orderedObject) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range o {
		if i > 0 {
			buf.WriteByte(',')
		}

		key, err := json.Marshal(f.key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')

		value, err := json.Marshal(f.value)
		if err != nil {
			return nil, err
		}
		buf.Write(value)
	}
	buf.WriteByte('}')

	return buf.Bytes(), nil
}

// renderJSON emits the machine-readable report: the hat plus every proposal
// in rank order with its total, voter breakdown and decoded spell (null
// when absent). All-or-nothing: any failure means no partial document.
func renderJSON(w io.Writer, s *chief.Snapshot) error {
	proposals := make(orderedObject, 0, len(s.Results))
	for _, entry := range s.Results {
		voters := make(orderedObject, 0)
		for _, stake := range chief.VotersFor(entry.Proposal, s.Voters) {
			voters = append(voters, field{key: stake.Address.Hex(), value: stake.Weight})
		}

		var spell any
		if decoded, ok := s.Spells[entry.Proposal]; ok {
			spell = decoded
		}

		proposals = append(proposals, field{key: entry.Proposal.Hex(), value: orderedObject{
			{key: "total", value: entry.Weight},
			{key: "voters", value: voters},
			{key: "spell", value: spell},
		}})
	}

	report := orderedObject{
		{key: "hat", value: s.Hat},
		{key: "proposals", value: proposals},
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	_, err = w.Write(data)

	return err
}
