package models

const (
	ContextSeparator = "\n"

	NoRelevantInformation  = "No relevant information found in the document."
	GuidanceNoDocument     = "Please upload and process a document first."
	GuidanceNotConfigured  = "LLM not initialized. Please check your API Key."
	GuidanceEmptyQuestion  = "Please enter a question."
	GenerationFailedPrefix = "Error generating response: "
	ChatFailedPrefix       = "Error during chat: "
)

var (
	// AnswerPromptTemplate takes the retrieved context and the user question, in that order.
	AnswerPromptTemplate = `Based on the following context from the document, answer the user's question.
If the answer cannot be found in the context, please say so.

Context:
%s

User Question: %s

Answer:`
)
