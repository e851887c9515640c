package extraction

const extractionPrompt = `Você é um especialista em extração de dados de prontuários médicos. Analise o documento/imagem fornecido e extraia as seguintes informações de forma estruturada:

EXTRAIA E ORGANIZE:
1. **Dados do Paciente**: Nome/iniciais, idade, sexo, data de nascimento
2. **Alergias**: Liste todas as alergias mencionadas
3. **Medicamentos em Uso**: Liste todos os medicamentos com posologia
4. **Condições Crônicas/Comorbidades**: Liste todas as doenças crônicas
5. **Histórico Pregresso**: Internações, cirurgias, doenças anteriores
6. **Histórico Familiar**: Doenças na família relevantes
7. **Sinais Vitais**: PA, FC, FR, Temperatura, SpO2 se disponíveis
8. **Queixas/Anamnese**: Resumo das queixas principais

RESPONDA APENAS em JSON válido:
{
  "dadosPaciente": {
    "nome": "iniciais ou nome",
    "idade": "XX anos",
    "sexo": "M/F",
    "dataNascimento": "se disponível"
  },
  "alergias": ["alergia 1", "alergia 2"],
  "medicamentos": ["med1 - posologia", "med2 - posologia"],
  "condicoessCronicas": ["condição 1", "condição 2"],
  "historicoPregresso": ["item 1", "item 2"],
  "historicoFamiliar": ["item 1", "item 2"],
  "sinaisVitais": {
    "pa": "valor",
    "fc": "valor",
    "fr": "valor",
    "temp": "valor",
    "spo2": "valor"
  },
  "anamnese": "Resumo da queixa principal e história",
  "textoCompleto": "Transcrição completa do texto extraído do documento"
}

Se algum campo não estiver disponível, retorne array vazio [] ou null.
Seja preciso e extraia TODOS os dados relevantes do documento.`

const extractionInstruction = "Analise este documento/imagem de prontuário médico e extraia todas as informações relevantes."
