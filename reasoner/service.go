package reasoner

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// ServiceHandler serves POST /analyze_combined. It always answers 200 with
// an envelope; generation and parse failures surface as the abstain record.
func ServiceHandler(gen Generator, timeout time.Duration, logger *logrus.Logger) gin.HandlerFunc {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return func(c *gin.Context) {
		var req Request
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}

		prompt := RenderPrompt(req)
		logger.WithFields(logrus.Fields{
			"field":     "ReasonerService",
			"entity_id": req.EntityID,
			"issues":    len(req.Issues),
		}).Debug(prompt)

		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		raw, err := gen.Generate(ctx, prompt)
		if err != nil {
			logger.WithFields(logrus.Fields{
				"field":     "ReasonerService",
				"entity_id": req.EntityID,
			}).WithError(err).Error("generation failed")
			c.JSON(http.StatusOK, Envelope{RawOutput: "", ParsedJSON: []Suggestion{Abstain()}})
			return
		}

		suggestions, perr := ParseModelOutput(raw)
		if perr != nil {
			logger.WithFields(logrus.Fields{
				"field":     "ReasonerService",
				"entity_id": req.EntityID,
			}).WithError(perr).Warn("model output not parseable")
		}
		c.JSON(http.StatusOK, Envelope{RawOutput: raw, ParsedJSON: suggestions})
	}
}
