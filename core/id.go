package core

import (
	"github.com/google/uuid"

	"pkt.systems/tabshell/schema"
)

func newTabID() schema.TabID {
	return schema.TabID("app-" + uuid.NewString())
}

func newViewID() schema.ViewID {
	return schema.ViewID(uuid.NewString())
}
