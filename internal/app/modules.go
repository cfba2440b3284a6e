package app

import (
	"github.com/vk/featuregrid/internal/handlers"
	"github.com/vk/featuregrid/modules/retail"
)

// coreModules is the definitive list of all modules that are compiled into
// the featuregrid binary.
var coreModules = []handlers.Module{
	&retail.Module{},
}
