// Copyright 2026 The Vereinsmatrix Authors
// SPDX-License-Identifier: Apache-2.0

// Package web exposes the pipeline over a local HTTP API, useful for
// spreadsheet-less callers and for poking at the cache.
package web

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mgraber/vereinsmatrix/geocode"
	"github.com/mgraber/vereinsmatrix/matrix"
	"github.com/mgraber/vereinsmatrix/utils"
)

type Server struct {
	cache    *geocode.Cache
	repo     *geocode.Repository
	resolver *geocode.Resolver
	client   matrix.Client
	opts     matrix.Options
}

func NewServer(cache *geocode.Cache, repo *geocode.Repository, resolver *geocode.Resolver, client matrix.Client, opts matrix.Options) *Server {
	return &Server{
		cache:    cache,
		repo:     repo,
		resolver: resolver,
		client:   client,
		opts:     opts,
	}
}

// Run serves on localhost only. The API key never leaves the process,
// so there is no authentication on the endpoints.
func (s *Server) Run() error {
	r := gin.Default()

	r.GET("/api/cache/stats", s.cacheStats)
	r.GET("/api/geocode", s.geocodeAddress)
	r.POST("/api/matrix", s.computeMatrix)

	return r.Run("localhost:8080")
}

func (s *Server) cacheStats(ctx *gin.Context) {
	stats := gin.H{
		"entries":  s.cache.Len(),
		"resolved": s.cache.Resolved(),
	}

	if s.repo != nil {
		total, resolved, err := s.repo.Count()
		if err != nil {
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

			return
		}

		stats["persisted"] = total
		stats["persisted_resolved"] = resolved
	}

	ctx.JSON(http.StatusOK, stats)
}

func (s *Server) geocodeAddress(ctx *gin.Context) {
	address := ctx.Query("address")
	if address == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "address query parameter is required"})

		return
	}

	key := utils.CollapseSpaces(utils.LowerASCIIFolding(address))

	points, stats, err := s.resolver.Resolve(ctx.Request.Context(), map[string]string{key: address})
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	point := points[key]
	if point == nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "address could not be resolved"})

		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"latitude":   point.Lat,
		"longitude":  point.Lng,
		"from_cache": stats.Cached > 0,
	})
}

type matrixRequest struct {
	Records []struct {
		Name        string `json:"name"`
		Street      string `json:"street"`
		PostalCode  string `json:"postal_code"`
		City        string `json:"city"`
		Country     string `json:"country"`
		FullAddress string `json:"full_address"`
	} `json:"records"`
	Mode    string `json:"mode"`
	Units   string `json:"units"`
	Traffic *bool  `json:"traffic"`
}

type matrixCell struct {
	DistanceKm  float64 `json:"distance_km,omitempty"`
	DurationMin float64 `json:"duration_min,omitempty"`
	Status      string  `json:"status"`
}

func (s *Server) computeMatrix(ctx *gin.Context) {
	var req matrixRequest
	if err := ctx.BindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	if len(req.Records) < 2 {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "at least two records are required"})

		return
	}

	records := make([]geocode.AddressRecord, len(req.Records))
	for i, r := range req.Records {
		records[i] = geocode.AddressRecord{
			ID:         i,
			Name:       r.Name,
			Street:     r.Street,
			PostalCode: r.PostalCode,
			City:       r.City,
			Country:    r.Country,
			Full:       r.FullAddress,
		}
	}

	opts := s.opts
	if req.Mode != "" {
		opts.Mode = matrix.TravelMode(req.Mode)
	}

	if req.Units != "" {
		opts.Units = matrix.Units(req.Units)
	}

	if req.Traffic != nil {
		opts.UseTraffic = *req.Traffic
	}

	orchestrator := matrix.NewOrchestrator(s.resolver, s.client, opts)

	result, err := orchestrator.Run(ctx.Request.Context(), records)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "state": result.State.String()})

		return
	}

	n := result.Matrix.Size()
	cells := make([][]matrixCell, n)

	for i := 0; i < n; i++ {
		cells[i] = make([]matrixCell, n)

		for j := 0; j < n; j++ {
			cell := result.Matrix.Cell(i, j)
			cells[i][j] = matrixCell{Status: cell.Status.String()}

			if cell.Status == matrix.StatusOK {
				cells[i][j].DistanceKm = cell.DistanceKm
				cells[i][j].DurationMin = cell.DurationMin
			}
		}
	}

	ctx.JSON(http.StatusOK, gin.H{
		"state":         result.State.String(),
		"chunks_total":  result.ChunksTotal,
		"chunks_failed": result.ChunksFailed,
		"cells":         cells,
	})
}
