package pipeline

import "mailassist/internal/llm"

var eventPrompt = llm.MustPrompt(OpEvent,
	`You are an efficient and straight-to-the-point assistant that specializes in preparing calendar invites. You will read the following conversation and determine if it contains a confirmation for an event. If no event is detected, answer with 'No'. If an event is detected, you will output a JSON-formatted string containing the following fields: 'e-mails', 'names', 'title', 'description', 'date', 'start_time' based on the information you gathered from the conversation.
* The field 'e-mails' is a list of each participants e-mail addresses as usually found in the 'To' or 'From' fields.
* List of possible e-mails: {{.Emails}}
* The field 'date' must use the format 'YYYY-MM-DD'.
* The field 'start_time' must use the format 'HH:MM'.
* You should try to avoid using e-mails found in the e-mails as the ones found in e-mail headers are often correct. If an e-mail is not found, do not add the corresponding name to the list. If the conversation is simply a confirmation sent by email for an event, the attendee will be the single recipient.
The 'title' and 'description' fields must be written in the same language as the 'text' field.`,
	`Mail conversation: {{.Text}}
JSON-formatted calendar invitation:`)

var verifyPrompt = llm.MustPrompt(OpVerify,
	"You are a calendar event validator. Check if the AI's extracted event information is accurate. Return ```valid``` if correct. If incorrect, provide rectification as JSON between ```json``` tags.",
	`Email: {{.Text}}
AI extraction: {{.Answer}}
Verification:`)

var summaryPrompt = llm.MustPrompt(OpSummary,
	`Tu es un assistant spécialisé dans la création de résumés d'emails. Analyse la conversation email fournie et génère un résumé concis en français. Identifie les points clés et les participants.`,
	`Conversation email: {{.Text}}
Génère un résumé structuré:`)

var replyPrompt = llm.MustPrompt(OpReply,
	`Réponse email (max 200 mots), ton professionnel.`,
	`Email: {{.Text}}
Réponse:`)

var classifyPrompt = llm.MustPrompt(OpClassify,
	`You are an assistant that classifies emails into folders.
You will receive:
- A list of available folders
- A single email (subject, sender, body preview)

You must return ONLY the folder name where this email should be stored.
If no folder fits, return "Uncategorized".`,
	`Folders: {{.Folders}}
Email: {{.Email}}

Folder:`)
