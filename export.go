package main

import (
	"fmt"
	"strings"
)

// shortModelName trims the provider prefix for display ("openai/gpt-5.2" ->
// "gpt-5.2").
func shortModelName(modelID string) string {
	if idx := strings.LastIndex(modelID, "/"); idx >= 0 {
		return modelID[idx+1:]
	}
	return modelID
}

// ExportToMarkdown renders a full conversation, including every deliberation
// stage, as a Markdown document.
func ExportToMarkdown(conversation *Conversation) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", conversation.Title)
	fmt.Fprintf(&b, "**Date:** %s\n", conversation.CreatedAt.Format("2006-01-02 15:04:05 UTC"))
	fmt.Fprintf(&b, "**ID:** %s\n\n---\n\n", conversation.ID)

	for i, msg := range conversation.Messages {
		switch msg.Role {
		case "user":
			fmt.Fprintf(&b, "## Message %d: User\n\n%s\n\n", i+1, msg.Content)
			for _, att := range msg.Attachments {
				fmt.Fprintf(&b, "> Attachment: %s\n\n", att.Name)
			}

		case "assistant":
			fmt.Fprintf(&b, "## Message %d: Council Response\n\n", i+1)

			if len(msg.Stage1) > 0 {
				b.WriteString("### Stage 1: Individual Responses\n\n")
				for _, r := range msg.Stage1 {
					fmt.Fprintf(&b, "#### %s\n\n", shortModelName(r.Model))
					if r.Failed() {
						fmt.Fprintf(&b, "_No answer: %s_\n\n", r.Err)
						continue
					}
					if ShouldShowThinking(r.Model, r.Thinking) {
						fmt.Fprintf(&b, "<details><summary>Thinking</summary>\n\n%s\n\n</details>\n\n", FormatThinking(r.Thinking))
					}
					fmt.Fprintf(&b, "%s\n\n", r.Response)
				}
			}

			if len(msg.Stage2) > 0 {
				b.WriteString("### Stage 2: Peer Rankings\n\n")
				if msg.Metadata != nil && len(msg.Metadata.AggregateRankings) > 0 {
					b.WriteString("#### Aggregate Rankings\n\n")
					b.WriteString("| Rank | Model | Avg Score | Votes |\n")
					b.WriteString("|------|-------|-----------|-------|\n")
					for idx, agg := range msg.Metadata.AggregateRankings {
						fmt.Fprintf(&b, "| %d | %s | %.2f | %d |\n",
							idx+1, shortModelName(agg.Model), agg.AverageRank, agg.RankingsCount)
					}
					b.WriteString("\n")
				}
				for _, review := range msg.Stage2 {
					fmt.Fprintf(&b, "#### %s's Evaluation\n\n%s\n\n", shortModelName(review.Model), review.Ranking)
				}
			}

			rebuttals := false
			for _, r := range msg.Stage25 {
				if r.IsRebuttal {
					rebuttals = true
					break
				}
			}
			if rebuttals {
				b.WriteString("### Stage 2.5: Rebuttals\n\n")
				for _, r := range msg.Stage25 {
					if !r.IsRebuttal {
						continue
					}
					fmt.Fprintf(&b, "#### %s (revised)\n\n%s\n\n", shortModelName(r.Model), r.Response)
				}
			}

			if msg.Stage3 != nil {
				b.WriteString("### Stage 3: Final Answer\n\n")
				fmt.Fprintf(&b, "**Chairman:** %s\n\n%s\n\n", shortModelName(msg.Stage3.Model), msg.Stage3.Response)
			}

			if msg.Metadata != nil && msg.Metadata.TotalCost > 0 {
				fmt.Fprintf(&b, "_Total cost: %s (%d tokens)_\n\n",
					FormatCost(msg.Metadata.TotalCost), msg.Metadata.TotalTokens.TotalTokens)
			}
		}

		b.WriteString("---\n\n")
	}

	return b.String()
}
