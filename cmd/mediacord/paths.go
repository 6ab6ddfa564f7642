package main

import "tools.zach/dev/mediacord/internal/paths"

// DataPaths aliases [paths.DataDir] so command code can build data-dir paths
// without qualifying the internal package.
type DataPaths = paths.DataDir
