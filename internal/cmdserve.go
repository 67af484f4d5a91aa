// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package internal

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/contrib/static"
	"github.com/gin-gonic/gin"

	"github.com/uvis-qe/flatqc/internal/logging"
	"github.com/uvis-qe/flatqc/internal/plane"
	"github.com/uvis-qe/flatqc/internal/qe"
)

// Routes for the results directory and the catalog API. catalog may be nil,
// in which case the run endpoints answer 503.
func NewRouter(resultsDir string, catalog *qe.Catalog) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())

	// Serve anomaly tables, previews and manifests
	if resultsDir != "" {
		r.Use(static.Serve("/", static.LocalFile(resultsDir, true)))
	}

	api := r.Group("/api/v1")
	api.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})

	api.GET("/runs", func(c *gin.Context) {
		if catalog == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no catalog configured"})
			return
		}
		runs, err := catalog.Runs(c.Request.Context(), c.Query("filter"))
		if err != nil {
			logging.Errorf("Listing runs: %s", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if runs == nil {
			runs = []qe.Run{}
		}
		c.JSON(http.StatusOK, runs)
	})

	api.GET("/runs/:id/anomalies", func(c *gin.Context) {
		if catalog == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no catalog configured"})
			return
		}
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("run id %q", c.Param("id"))})
			return
		}
		records, err := catalog.Anomalies(c.Request.Context(), id)
		if errors.Is(err, plane.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		} else if err != nil {
			logging.Errorf("Anomalies of run %d: %s", id, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, records)
	})

	return r
}

// Serve the results directory and catalog API via HTTP
func CmdServe(port int, resultsDir string, catalog *qe.Catalog) error {
	logging.Printf("Serving %s on port %d", resultsDir, port)
	return NewRouter(resultsDir, catalog).Run(fmt.Sprintf(":%d", port)) // listen and serve on 0.0.0.0:port
}
