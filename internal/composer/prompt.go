// Package composer builds the grounded instruction prompt sent to the
// completion provider: domain persona, answering rules, fixed agronomic
// reference ranges, retrieved context, and the user question.
package composer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/agrolab/hydrochat/internal/retrieval"
)

// Reference ranges for hydroponic lettuce cultivation, injected verbatim
// into every prompt so answers about measurements stay anchored.
const referenceRanges = `### Informações úteis:
- **Observação**: os dados disponibilizados podem não conter todas as variáveis; responda apenas com base nas variáveis a que você tem acesso.
- **Temperatura da solução nutritiva**: idealmente constante em 20 °C.
- **Temperatura ambiente com luz**: entre 25 °C e 28 °C. Sem luz: entre 19 °C e 20 °C.
- **pH da solução nutritiva**: entre 6.0 e 6.2. Tolerável até 5.8 ou 6.3 com perda de produtividade.
- **Condutividade Elétrica (EC)**: entre 1.6 e 1.9 dS/m. Faixa estendida de 1.5 a 2.5 dS/m, sendo 2.2 um valor máximo produtivo.
- **CO2**: entre 400.0 e 600.0. Tolerável até 630.0 com perda de produtividade.`

const persona = `Você é um assistente especializado no monitoramento hidropônico de uma plantação de alface, projetado para apoiar produtores em suas dúvidas sobre o cultivo. Seu objetivo é fornecer informações precisas, esclarecer conceitos, sugerir melhorias e oferecer suporte técnico nas áreas do cultivo hidropônico de alface, incluindo parâmetros como temperatura, umidade, oxigenação, iluminação, irrigação, pH e condutividade elétrica, com base nos materiais indexados (dados coletados do monitoramento do cultivo, documentos, vídeos, livros, entre outros).
***Se não houver contexto suficiente para responder, informe que não é possível responder.***
***Não invente respostas e nem amplie a resposta para além do contexto fornecido.***`

const guidelines = `### Diretrizes de Resposta:
1. **Escopo**: Responda com base no conteúdo indexado. Se a pergunta não estiver relacionada aos temas do cultivo hidropônico de alface (pH, EC, temperatura, umidade, iluminação, etc.), ou não houver informações disponíveis sobre a variável solicitada, informe educadamente que não é possível responder.
2. **Tom e Estilo**: Utilize linguagem clara e pedagógica, mantendo-se no mesmo idioma da pergunta.
3. **Referências**: Ao responder, ***inclua referências quando possível. Referenciar é uma boa prática esperada do agrônomo***, pois o ajuda a rastrear e verificar as fontes de informação. Use referências que foram de fato utilizadas na resposta.
4. Quando solicitado um relatório de uma data ou período específico, apresente: menor, maior e média dos valores registrados.`

const citationRules = `### Como Referenciar ###
1. Sempre que puder usar a informação ` + "`reference`" + ` do metadata, use-a. Ela é mais específica e deve ser priorizada.
2. Quando não houver ` + "`reference`" + `, extraia as referências no seguinte formato:
  * ` + "`Title`" + `: o que aparece antes de ` + "`.json.`" + `
  * ` + "`ActivityId`" + `: o número imediatamente após ` + "`activity_`" + `
  * Para os outros casos, extraia as referências de elementos disponíveis no metadata.`

const contextHeader = `### Contexto: ###
Você tem acesso a um conjunto de dados sobre o cultivo hidropônico de alface, incluindo medições de temperatura interna e externa, CO2, pH e condutividade elétrica.
**Responda com mais embasamento no contexto abaixo**`

const noContextNote = `Nenhum documento foi recuperado para esta pergunta. Informe que não é possível responder com o contexto disponível.`

// Compose builds the augmented instruction prompt from the retrieved
// documents and the user question. It never fails: an empty document set
// still produces a well-formed prompt instructing inability to answer.
func Compose(docs []retrieval.Document, query string) string {
	var sb strings.Builder
	sb.WriteString(persona)
	sb.WriteString("\n\n")
	sb.WriteString(guidelines)
	sb.WriteString("\n\n")
	sb.WriteString(referenceRanges)
	sb.WriteString("\n\n")
	sb.WriteString(citationRules)
	sb.WriteString("\n\n")
	sb.WriteString(contextHeader)
	sb.WriteString("\n")
	sb.WriteString(contextBlock(docs))
	sb.WriteString("\n\n### Pergunta:\n")
	sb.WriteString(query)
	sb.WriteString("\nResponda com base nesse contexto, garantindo que sua resposta seja objetiva, fundamentada e alinhada ao propósito de um chatbot para o cultivo. Referencie adequadamente cada fonte utilizada e responda somente o que foi perguntado, sem adicionar informações extras.\n")
	return sb.String()
}

// contextBlock renders each document's text followed by its metadata
// mapping, newline-joined, in retrieval order.
func contextBlock(docs []retrieval.Document) string {
	if len(docs) == 0 {
		return noContextNote
	}
	parts := make([]string, len(docs))
	for i, d := range docs {
		parts[i] = d.Text + "\nMetadata: " + formatMetadata(d.Metadata)
	}
	return strings.Join(parts, "\n")
}

// formatMetadata renders the metadata mapping with sorted keys so prompts
// are reproducible run to run.
func formatMetadata(meta map[string]string) string {
	if len(meta) == 0 {
		return "{}"
	}
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = fmt.Sprintf("%s: %s", k, meta[k])
	}
	return "{" + strings.Join(pairs, ", ") + "}"
}
