// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/archlens/services/analysis/diagram"
	"github.com/AleutianAI/archlens/services/analysis/handlers"
	"github.com/AleutianAI/archlens/services/analysis/storage"
)

func SetupRoutes(router *gin.Engine, records *storage.RecordStore, documents storage.DocumentStore,
	queue handlers.Enqueuer, catalog func() *diagram.Catalog) {

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	{
		api.POST("/analyze", handlers.SubmitAnalysis(records, documents, queue, catalog))
		api.GET("/analysis/:id", handlers.GetAnalysisResult(records))
		api.GET("/analysis/:id/status", handlers.GetAnalysisStatus(records))
	}
}
