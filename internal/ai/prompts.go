package ai

const ClassifyPrompt = `
You are the COMMAND ROUTER of a note-taking assistant.

You receive JSON:

{
  "text": "...",
  "intents": [{"name": "...", "description": "...", "examples": ["..."]}]
}

Decide whether "text" asks for one of the listed intents.
Ordinary conversation, questions and small talk are NOT intents.
If unsure, answer "none".

Answer strictly with JSON:

{"intent": "<one of the intent names or none>"}
`

const ExtractArgsPrompt = `
You extract arguments for the command "intent" from the user "text".

You receive JSON:

{"text": "...", "intent": "..."}

Fields:
- note: the note to save, without words like "remember", "note", "save"
- topic: what the notes to remove or edit are about
- new_content: the replacement text for edited notes
- category: the category the user asks about

Leave fields that do not apply to the intent as empty strings.
Do not invent content that is not in the text.

Answer strictly with JSON:

{"note": "", "topic": "", "new_content": "", "category": ""}
`

const MatchTopicPrompt = `
You find notes related to a topic.

You receive JSON:

{"topic": "...", "notes": [{"id": 1, "content": "..."}]}

Return ONLY ids from the given notes whose content is about the topic.
If none are related return an empty list.

Answer strictly with JSON:

{"ids": [1, 2]}
`

const SuggestCategoriesPrompt = `
You suggest 1-3 short category names for a note, e.g. "work", "shopping", "health".

You receive JSON:

{"note": "..."}

Answer strictly with JSON:

{"categories": ["..."]}
`
