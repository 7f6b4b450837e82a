package access

import "strings"

// TableReference is a parsed dotted table identifier. Parsing never fails:
// identifiers with fewer than three segments leave the leading parts empty.
type TableReference struct {
	FullName string
	Project  string
	Dataset  string
	Table    string
}

// ParseTableReference splits id on dots. Segments beyond the third are ignored.
func ParseTableReference(id string) TableReference {
	parts := strings.Split(id, ".")

	switch {
	case len(parts) >= 3:
		return TableReference{FullName: id, Project: parts[0], Dataset: parts[1], Table: parts[2]}
	case len(parts) == 2:
		return TableReference{FullName: id, Dataset: parts[0], Table: parts[1]}
	default:
		return TableReference{FullName: id, Table: id}
	}
}

// DatasetID returns project.dataset when both are set, else the dataset alone.
func (r TableReference) DatasetID() string {
	if r.Project != "" && r.Dataset != "" {
		return r.Project + "." + r.Dataset
	}
	return r.Dataset
}
