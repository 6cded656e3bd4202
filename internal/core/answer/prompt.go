package answer

import "strings"

// systemPrompt は回答生成モデルへの制約を定義する
const systemPrompt = `You are an assistant that answers questions about a software developer's portfolio.
Answer using ONLY the information provided in the context below.
If the context does not contain enough information to answer the question, reply exactly with:
"I don't have enough information to answer that question based on the available content."
Do not invent facts, do not speculate, and do not reference sources outside the context.
Keep answers concise and factual.`

// buildUserPrompt はコンテキストと質問からユーザープロンプトを組み立てる
func buildUserPrompt(contextText, question string) string {
	var b strings.Builder
	b.WriteString("Context:\n")
	b.WriteString(contextText)
	b.WriteString("\n\nQuestion: ")
	b.WriteString(question)
	b.WriteString("\n\nAnswer:")
	return b.String()
}
