/*
Copyright © 2024 the geo2fds authors.
This file is part of geo2fds.

geo2fds is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

geo2fds is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with geo2fds.  If not, see <http://www.gnu.org/licenses/>.
*/


// Command geo2fds converts terrain and land-cover rasters into a Fire
// Dynamics Simulator input deck.
package main

import (
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/spatialmodel/geo2fds/geo2fdsutil"
)

func main() {
	cfg := geo2fdsutil.InitializeConfig()
	if err := cfg.Root.Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}
