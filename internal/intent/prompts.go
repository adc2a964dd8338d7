/*
 * This file is part of Loqa (https://github.com/loqalabs/loqa).
 * Copyright (C) 2025 Loqa Labs
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program. If not, see <https://www.gnu.org/licenses/>.
 */

package intent

import "fmt"

// Generation prompts. Both stages always ask for English output whatever the
// transcript language.
const (
	IntentSystemPrompt = `You are an intent classifier. Your task is to identify the user's intent from the given text and provide it in exactly 2-3 words in English.
Examples of correct intents:
- "power cut" (for power/electricity issues)
- "complaint" (for complaints)
- "bill inquiry" (for bill questions)
- "connection request" (for new connections)
- "payment issue" (for payment problems)
- "service request" (for service requests)

Provide ONLY the intent in 2-3 words, nothing else.`

	SummarySystemPrompt = `You are an intelligent analyst. Provide a brief and accurate summary of the given text. The summary should be in English and describe the main point in one sentence. Example: "complain for unavailability of current"`
)

// IntentPrompt embeds a transcript in the intent request
func IntentPrompt(text string) string {
	return fmt.Sprintf("Identify the user's intent from this text. Provide ONLY 2-3 words in English.\n\nText: %s\n\nIntent (2-3 words only):", text)
}

// SummaryPrompt embeds a transcript in the summary request
func SummaryPrompt(text string) string {
	return fmt.Sprintf("Summarize the following text in English in one sentence describing the main point:\n\n%s\n\nExample format: 'complain for unavailability of current'", text)
}
