package msdata

import (
	"encoding/xml"
	"fmt"
)

// CVParam is a controlled-vocabulary key/value pair, keyed by an
// accession number from the governing CV.
type CVParam struct {
	Accession int    `xml:"accession,attr"`
	Value     string `xml:"value,attr"`
}

// UserParam is a free-form typed name/value pair.
type UserParam struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
	Type  string `xml:"type,attr"`
}

// ParamTree is the metadata container attached to catalog entities
// (Spectrum, Software, SourceFile, InstrumentConfiguration, DataProcessing,
// Chromatogram, Archive): a list of CV-params and a list of user-params.
type ParamTree struct {
	XMLName    xml.Name    `xml:"params"`
	CVParams   []CVParam   `xml:"cvParams>cvParam"`
	UserParams []UserParam `xml:"userParams>userParam"`
}

// NewParamTree returns an empty ParamTree ready for use.
func NewParamTree() *ParamTree {
	return &ParamTree{XMLName: xml.Name{Local: "params"}}
}

// SetCVParam inserts or replaces the value for accession.
func (t *ParamTree) SetCVParam(accession int, value string) {
	for i := range t.CVParams {
		if t.CVParams[i].Accession == accession {
			t.CVParams[i].Value = value
			return
		}
	}
	t.CVParams = append(t.CVParams, CVParam{Accession: accession, Value: value})
}

// SetUserParam inserts or replaces the value and type for name.
func (t *ParamTree) SetUserParam(name, value, typ string) {
	for i := range t.UserParams {
		if t.UserParams[i].Name == name {
			t.UserParams[i].Value = value
			t.UserParams[i].Type = typ
			return
		}
	}
	t.UserParams = append(t.UserParams, UserParam{Name: name, Value: value, Type: typ})
}

// CVValue looks up a CV-param by accession, reporting whether it exists.
func (t *ParamTree) CVValue(accession int) (string, bool) {
	for _, p := range t.CVParams {
		if p.Accession == accession {
			return p.Value, true
		}
	}
	return "", false
}

// UserValue looks up a user-param by name, reporting whether it exists.
func (t *ParamTree) UserValue(name string) (string, bool) {
	for _, p := range t.UserParams {
		if p.Name == name {
			return p.Value, true
		}
	}
	return "", false
}

// Marshal serializes the tree to its XML chunk form.
func (t *ParamTree) Marshal() ([]byte, error) {
	if t.XMLName.Local == "" {
		t.XMLName = xml.Name{Local: "params"}
	}
	data, err := xml.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("msdata: failed to marshal param tree: %w", err)
	}
	return data, nil
}

// ParseParamTree parses an XML chunk into a ParamTree, failing strictly on
// malformed XML.
func ParseParamTree(data []byte) (*ParamTree, error) {
	var t ParamTree
	if err := xml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("msdata: malformed param tree XML: %w", err)
	}
	return &t, nil
}
