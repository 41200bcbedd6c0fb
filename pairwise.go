package oidc

// Pairwise subject derivation modes.
const (
	// PairwiseTypeAlgorithmic recomputes the subject from a keyed hash on
	// every call. Nothing is stored.
	PairwiseTypeAlgorithmic = "algorithmic"

	// PairwiseTypePersistent stores a random mapping per (sector, user) pair.
	PairwiseTypePersistent = "persistent"
)

// PairwiseSubjectMapping records the opaque subject identifier minted for a
// (sector identifier, user) pair when the server runs in persistent pairwise
// mode.
type PairwiseSubjectMapping struct {
	// ID uniquely identifies the mapping record.
	ID string `bson:"id" json:"id" xml:"id"`
	// SectorIdentifier is the sector the subject is scoped to. Clients that
	// share a sector share subjects.
	SectorIdentifier string `bson:"sector_identifier" json:"sector_identifier" xml:"sector_identifier"`
	// UserID is the local user the subject stands in for.
	UserID string `bson:"user_id" json:"user_id" xml:"user_id"`
	// Subject is the opaque identifier released to clients.
	Subject string `bson:"subject" json:"subject" xml:"subject"`
	// CreateTime is when the mapping was minted, in unixtime.
	CreateTime int64 `bson:"create_time" json:"create_time" xml:"create_time"`
}

// IsEmpty returns whether or not the mapping resource is an empty record.
func (p PairwiseSubjectMapping) IsEmpty() bool {
	return p.ID == ""
}
