package schemas

import (
	"encoding/json"
	"fmt"
	"time"
)

// -- Evidence Sources --

// SourceName identifies an upstream evidence provider.
type SourceName string

const (
	SourceClinGen          SourceName = "ClinGen"
	SourceGenCC            SourceName = "GenCC"
	SourceHPO              SourceName = "HPO"
	SourcePanelApp         SourceName = "PanelApp"
	SourcePubTator         SourceName = "PubTator"
	SourceDiagnosticPanels SourceName = "DiagnosticPanels"
	SourceStringPPI        SourceName = "STRING_PPI"
)

// -- Evidence Records --

// EvidenceRecord is the envelope produced by the ingestion layer for one
// (gene, source, detail) observation. Re-ingestion updates a record in place;
// the (GeneID, Source, SourceDetail) tuple is unique.
type EvidenceRecord struct {
	GeneID       string          `json:"gene_id"`
	Symbol       string          `json:"symbol"`
	Source       SourceName      `json:"source_name"`
	SourceDetail string          `json:"source_detail,omitempty"`
	Payload      EvidencePayload `json:"evidence_data"`
	Score        *float64        `json:"evidence_score,omitempty"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// EvidencePayload is the closed set of per-source payload shapes. Scoring code
// switches on the concrete variant exactly once, in the weight mapper; nothing
// downstream inspects source names.
type EvidencePayload interface {
	SourceName() SourceName
}

// ClinGenPayload carries gene-disease validity classifications. Newer dumps
// provide an array; older ones a single classification string.
type ClinGenPayload struct {
	Classifications []string `json:"classifications,omitempty"`
	Classification  string   `json:"classification,omitempty"`
}

func (ClinGenPayload) SourceName() SourceName { return SourceClinGen }

// GenCCSubmission is one submitter's classification of a gene-disease pair.
type GenCCSubmission struct {
	Classification string `json:"classification"`
	Submitter      string `json:"submitter,omitempty"`
	DiseaseID      string `json:"disease_id,omitempty"`
}

// GenCCPayload carries the full submission list for a gene.
type GenCCPayload struct {
	Submissions []GenCCSubmission `json:"submissions"`
}

func (GenCCPayload) SourceName() SourceName { return SourceGenCC }

// HPOPayload carries phenotype term annotations for a gene.
type HPOPayload struct {
	TermIDs []string `json:"term_ids"`
}

func (HPOPayload) SourceName() SourceName { return SourceHPO }

// PanelMembership records a gene's inclusion on one PanelApp panel.
type PanelMembership struct {
	PanelID    string `json:"panel_id"`
	PanelName  string `json:"panel_name,omitempty"`
	Confidence string `json:"confidence,omitempty"`
}

// PanelAppPayload carries panel memberships for a gene.
type PanelAppPayload struct {
	Panels []PanelMembership `json:"panels"`
}

func (PanelAppPayload) SourceName() SourceName { return SourcePanelApp }

// PubTatorPayload carries literature co-mention publication identifiers.
type PubTatorPayload struct {
	PublicationIDs []string `json:"publication_ids"`
}

func (PubTatorPayload) SourceName() SourceName { return SourcePubTator }

// DiagnosticPanelsPayload carries commercial diagnostic panel names listing
// the gene.
type DiagnosticPanelsPayload struct {
	Panels []string `json:"panels"`
}

func (DiagnosticPanelsPayload) SourceName() SourceName { return SourceDiagnosticPanels }

// StringInteraction is one STRING-DB physical interaction edge. Confidence is
// the raw STRING combined score on the 0-1000 scale.
type StringInteraction struct {
	PartnerSymbol string `json:"partner_symbol"`
	Confidence    int    `json:"confidence"`
}

// StringPPIPayload carries the physical interaction list for a gene.
type StringPPIPayload struct {
	Interactions []StringInteraction `json:"interactions"`
}

func (StringPPIPayload) SourceName() SourceName { return SourceStringPPI }

// DecodePayload reconstructs the concrete payload variant for a source from
// its serialized form. Storage layers use it when reading records back.
func DecodePayload(source SourceName, data []byte) (EvidencePayload, error) {
	switch source {
	case SourceClinGen:
		var p ClinGenPayload
		return p, json.Unmarshal(data, &p)
	case SourceGenCC:
		var p GenCCPayload
		return p, json.Unmarshal(data, &p)
	case SourceHPO:
		var p HPOPayload
		return p, json.Unmarshal(data, &p)
	case SourcePanelApp:
		var p PanelAppPayload
		return p, json.Unmarshal(data, &p)
	case SourcePubTator:
		var p PubTatorPayload
		return p, json.Unmarshal(data, &p)
	case SourceDiagnosticPanels:
		var p DiagnosticPanelsPayload
		return p, json.Unmarshal(data, &p)
	case SourceStringPPI:
		var p StringPPIPayload
		return p, json.Unmarshal(data, &p)
	}
	return nil, fmt.Errorf("unknown evidence source %q", source)
}

// -- Aggregated Scores --

// GeneScore is the composite evidence view for one gene. PercentageScore is
// nil only when the gene has no scorable evidence at all; such genes sort
// after every scored gene.
type GeneScore struct {
	GeneID          string                 `json:"gene_id"`
	Symbol          string                 `json:"symbol"`
	SourceCount     int                    `json:"source_count"`
	EvidenceCount   int                    `json:"evidence_count"`
	RawScore        float64                `json:"raw_score"`
	PercentageScore *float64               `json:"percentage_score"`
	Breakdown       map[SourceName]float64 `json:"breakdown"`
}
