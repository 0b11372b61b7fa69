package api

import (
	"net/http" // HTTP status codes

	"github.com/gin-gonic/gin" // Gin web framework
)

// BookSection is one chapter of the DM's campaign book
type BookSection struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

var campaignBook = map[string]BookSection{
	"overview": {
		Title: "World Overview: Shadowmar",
		Content: `<h2>The Chronicles of Shadowmar</h2>
<p>A pirate campaign in a world of endless twilight, where the stars burn brighter than the sun ever did.</p>
<ul>
<li><strong>Objective:</strong> reach the Drowned City of Xylos</li>
<li><strong>Ship:</strong> the Shadowchaser II</li>
<li><strong>Funds:</strong> 5,000 gp</li>
</ul>
<h3>The Four Weavers</h3>
<p>Stars, Worlds, Life and Dreams: the four powers that shaped Shadowmar out of the Void.</p>`,
	},
	"sessions": {
		Title: "Session Archive",
		Content: `<h2>Session 1: The Storm's Fury</h2>
<p><strong>Status:</strong> completed</p>
<p>Ghost ships gathered off Ironwood Isle ahead of a tidal wave aimed at Dawnhaven harbor. The crew destroyed the Storm Shard and saved the isle.</p>
<ul>
<li>5,000 gp reward</li>
<li>A larger ship</li>
<li>A map to the Drowned City</li>
</ul>`,
	},
}

// BookSectionHandler serves a section of the DM campaign book
func BookSectionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		section, ok := campaignBook[c.Param("section")]
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "section not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "title": section.Title, "content": section.Content})
	}
}
