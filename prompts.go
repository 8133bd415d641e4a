package main

import (
	"fmt"
	"strings"
)

// PromptSet is the prompt-template collaborator: the orchestrator asks for a
// stage prompt and stays agnostic to the wording. Swap individual fields to
// customize a deployment.
type PromptSet struct {
	Review         func(userQuery, responsesText string) string
	Rebuttal       func(userQuery, myLabel, originalAnswer, critiques string) string
	Chairman       func(userQuery, answersText, rankingText, reviewsText string) string
	Title          func(userQuery string) string
	ExtractRanking func(rankingText string, labels []string) string
}

// DefaultPrompts returns the stock deliberation prompts.
func DefaultPrompts() *PromptSet {
	return &PromptSet{
		Review:         reviewPrompt,
		Rebuttal:       rebuttalPrompt,
		Chairman:       chairmanPrompt,
		Title:          titlePrompt,
		ExtractRanking: extractRankingPrompt,
	}
}

func reviewPrompt(userQuery, responsesText string) string {
	return fmt.Sprintf(`You are evaluating different responses to the following question:

Question: %s

Here are the responses from different models (anonymized):

%s

Your task:
1. First, evaluate each response individually. For each response, explain what it does well and what it does poorly.
2. Then, at the very end of your response, provide a final ranking.

IMPORTANT: Your final ranking MUST be formatted EXACTLY as follows:
- Start with the line "FINAL RANKING:" (all caps, with colon)
- Then list the responses from best to worst as a numbered list
- Each line should be: number, period, space, then ONLY the response label (e.g., "1. Response A")
- Do not add any other text or explanations in the ranking section

Example of the correct format for your ENTIRE response:

Response A provides good detail on X but misses Y...
Response B is accurate but lacks depth on Z...
Response C offers the most comprehensive answer...

FINAL RANKING:
1. Response C
2. Response A
3. Response B

Now provide your evaluation and ranking:`, userQuery, responsesText)
}

func rebuttalPrompt(userQuery, myLabel, originalAnswer, critiques string) string {
	return fmt.Sprintf(`You previously answered a user question. Other AI models have now reviewed and ranked all answers, including yours (you are identified as %s).

Original Question: %s

Your Original Answer:
%s

---
PEER REVIEWS AND RANKINGS:
%s
---

Your Task:
1. Read the critiques of your specific answer (%s).
2. Decide if you want to update or refine your answer based on valid points raised by peers.
3. If your original answer was perfect, just repeat it. If you missed something, fix it.
4. Provide your FINAL, revised answer. Do not include meta-commentary about the process in the final output, just the answer.

Revised Answer:`, myLabel, userQuery, originalAnswer, critiques, myLabel)
}

func chairmanPrompt(userQuery, answersText, rankingText, reviewsText string) string {
	return fmt.Sprintf(`You are the Chairman of an LLM Council. Multiple AI models have provided responses to a user's question, ranked each other's responses, and had a chance to revise their answers after seeing the critiques.

Original Question: %s

COUNCIL ANSWERS (revised where a model chose to):
%s

AGGREGATE PEER RANKING:
%s

PEER REVIEWS:
%s

Your task as Chairman is to synthesize all of this information into a single, comprehensive, accurate answer to the user's original question. Consider:
- The individual responses and their insights
- The peer rankings and what they reveal about response quality
- Any patterns of agreement or disagreement

Provide a clear, well-reasoned final answer that represents the council's collective wisdom:`, userQuery, answersText, rankingText, reviewsText)
}

func extractRankingPrompt(rankingText string, labels []string) string {
	labelsStr := strings.Join(labels, ", ")
	return fmt.Sprintf(`You are a data extraction assistant. I have a text where an AI model evaluated several responses (labeled %s).
I need you to extract the final ranking the model decided on.

Evaluation Text:
%s

Task:
1. Identify the final ranking of the responses from best to worst.
2. Return ONLY the labels in order, separated by commas.
3. Use the exact labels provided: %s

Example output: Response C, Response A, Response B

Final Ranking:`, labelsStr, rankingText, labelsStr)
}

func titlePrompt(userQuery string) string {
	return fmt.Sprintf(`Generate a very short title (3-5 words maximum) that summarizes the following question.
The title should be concise and descriptive. Do not use quotes or punctuation in the title.

Question: %s

Title:`, userQuery)
}
