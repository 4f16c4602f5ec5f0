package snapshot

import (
	"fmt"

	"github.com/semmidev/mongovault/internal/document"
)

// PrimaryIndexName is the reserved name of the _id index every collection
// has by construction.
const PrimaryIndexName = "_id_"

// metadataFields are recorded in a snapshot but describe the source server,
// not the index, and must not be sent back on creation.
var metadataFields = []string{"v", "ns"}

type IndexDefinition struct {
	Name    string
	Keys    document.Document
	Options document.Document
}

// IndexFromSpec splits a listIndexes entry into name, key pattern and the
// remaining options.
func IndexFromSpec(spec document.Document) (IndexDefinition, error) {
	name, ok := spec.Lookup("name")
	if !ok || name.Kind() != document.KindString {
		return IndexDefinition{}, fmt.Errorf("index spec without a name")
	}
	keys, ok := spec.Lookup("key")
	if !ok || keys.Kind() != document.KindDocument {
		return IndexDefinition{}, fmt.Errorf("index %s: missing key pattern", name.AsString())
	}
	return IndexDefinition{
		Name:    name.AsString(),
		Keys:    keys.AsDocument(),
		Options: spec.Without("name", "key"),
	}, nil
}

func (i IndexDefinition) IsPrimary() bool {
	return i.Name == PrimaryIndexName
}

// Spec renders the definition back into a listIndexes / createIndexes entry.
func (i IndexDefinition) Spec() document.Document {
	spec := document.Document{
		{Key: "key", Value: document.Doc(i.Keys)},
		{Key: "name", Value: document.String(i.Name)},
	}
	return append(spec, i.Options...)
}

// Clean returns a copy without the source-server metadata fields.
func (i IndexDefinition) Clean() IndexDefinition {
	return IndexDefinition{
		Name:    i.Name,
		Keys:    i.Keys,
		Options: i.Options.Without(metadataFields...),
	}
}

func (i IndexDefinition) Equal(o IndexDefinition) bool {
	return i.Name == o.Name && i.Keys.EqualInOrder(o.Keys) && i.Options.Equal(o.Options)
}

// SameSpec reports whether two definitions describe the same index as the
// server sees it: the same key pattern in the same order and equivalent
// options, names and metadata ignored. The deprecated background flag has
// no effect on the index.
func (i IndexDefinition) SameSpec(o IndexDefinition) bool {
	strip := append([]string{"background"}, metadataFields...)
	return i.Keys.EquivalentInOrder(o.Keys) && i.Options.Without(strip...).Equivalent(o.Options.Without(strip...))
}
