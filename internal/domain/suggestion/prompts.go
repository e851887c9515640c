package suggestion

import "github.com/sivia/sivia/pkg/clinical"

const analyzePrompt = `Você é um assistente clínico. Analise a anamnese fornecida e verifique se há dados essenciais faltando para uma avaliação clínica precisa.

Dados essenciais a verificar:
- Idade do paciente
- Sexo do paciente
- Queixa principal clara
- Duração dos sintomas
- Sinais vitais (se aplicável ao caso)
- Alergias medicamentosas
- Medicamentos em uso
- Comorbidades relevantes
- Sinais de alarme específicos para a queixa

Se faltar dados importantes, gere de 3 a 5 perguntas CLARAS e ESPECÍFICAS para esclarecer.

RESPONDA APENAS em JSON válido:
{
  "needsClarification": true/false,
  "questions": ["Pergunta 1?", "Pergunta 2?", ...]
}

Se todos os dados essenciais estiverem presentes, retorne:
{"needsClarification": false, "questions": []}`

const generatePrompt = `Você é um assistente clínico especializado em medicina baseada em evidências. Analise o caso clínico apresentado e forneça sugestões estruturadas.

EXTRAÇÃO DE DADOS: O texto fornecido contém a anamnese completa. Você DEVE extrair automaticamente:
- Alergias mencionadas no texto
- Medicamentos em uso mencionados no texto
- Condições crônicas/comorbidades mencionadas no texto
Use essas informações extraídas para personalizar diagnósticos, condutas e prescrições.

IMPORTANTE: Responda APENAS em formato JSON válido, sem markdown, seguindo exatamente esta estrutura:
{
  "diagnosticos": [
    {"nome": "Nome do diagnóstico", "probabilidade": "Alta/Média/Baixa"}
  ],
  "condutas": ["Conduta 1", "Conduta 2"],
  "exames": ["Exame 1", "Exame 2"],
  "prescricoes": [
    {
      "medicamento": "Nome do medicamento",
      "apresentacao": "Comprimido 500mg, Xarope 100mg/5ml, etc.",
      "posologia": "1 comprimido de 8/8 horas",
      "duracao": "5 dias",
      "orientacoes": "Tomar após as refeições. Evitar bebidas alcoólicas."
    }
  ],
  "referencias": ["Referência 1", "Referência 2"]
}

Regras:
- Máximo 5 diagnósticos diferenciais, ordenados por probabilidade
- Condutas imediatas e práticas
- Exames complementares relevantes
- Prescrições: inclua medicamentos sintomáticos apropriados para a queixa principal
- EVITE medicamentos que conflitem com alergias ou medicamentos em uso
- Referências de diretrizes brasileiras (MS Brasil, SBC, SBEM, SBD, SBPT, etc.)
- Seja objetivo e clínico`

const emergencyAddendum = `

MODO EMERGÊNCIA/URGÊNCIA:
- Priorize a abordagem ABCDE (via aérea, respiração, circulação, estado neurológico, exposição)
- Liste primeiro as condutas imediatas de estabilização
- Destaque sinais de gravidade e critérios de internação ou transferência
- Prefira protocolos de emergência reconhecidos (ACLS, ATLS, diretrizes da ABRAMEDE)`

const occupationalAddendum = `

MODO MEDICINA OCUPACIONAL:
- Considere a NR-7 (PCMSO) e os riscos ocupacionais da função descrita
- Avalie o nexo entre o quadro clínico e a atividade de trabalho
- Sugira exames complementares ocupacionais pertinentes
- Indique necessidade de afastamento, restrição de função ou emissão de CAT quando aplicável`

// NormalizeMode maps unknown or empty modes to normal.
func NormalizeMode(mode string) string {
	switch mode {
	case clinical.ModeEmergency, clinical.ModeOccupational:
		return mode
	default:
		return clinical.ModeNormal
	}
}

func generateSystemPrompt(mode string) string {
	switch NormalizeMode(mode) {
	case clinical.ModeEmergency:
		return generatePrompt + emergencyAddendum
	case clinical.ModeOccupational:
		return generatePrompt + occupationalAddendum
	default:
		return generatePrompt
	}
}
