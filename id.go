package hookrelay

import "github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/id"

// ID is the primary identifier type for all hookrelay entities.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix
