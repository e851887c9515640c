package occupational

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sivia/sivia/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

// Dates and enums travel as text; empty optional dates are stored as NULL.
const examCols = `id, user_id, empresa_nome, empresa_cnpj, setor,
	funcao, departamento, tipo_exame::text, data_exame::text, trabalhador_nome,
	trabalhador_cpf, COALESCE(data_nascimento::text, ''), idade, sexo, historico_ocupacional,
	tempo_funcao_atual, tempo_empresa, afastamento_anterior, motivo_afastamento, dias_afastamento,
	riscos_nr, descricao_riscos, usa_epi, epi_utilizados, queixas_atuais,
	antecedentes_patologicos, medicamentos_uso, alergias, habitos_vida, pressao_arterial,
	frequencia_cardiaca, peso, altura, imc, exame_clinico,
	exames_complementares, resultados_exames, parecer::text, restricoes, observacoes,
	COALESCE(data_retorno_previsto::text, ''), documento_inss, cid_principal, queixa_ergonomica, created_at,
	updated_at`

func scanExam(row pgx.Row) (*Exam, error) {
	var e Exam
	var tipo, parecer string
	err := row.Scan(&e.ID, &e.UserID, &e.EmpresaNome, &e.EmpresaCNPJ, &e.Setor,
		&e.Funcao, &e.Departamento, &tipo, &e.DataExame, &e.TrabalhadorNome,
		&e.TrabalhadorCPF, &e.DataNascimento, &e.Idade, &e.Sexo, &e.HistoricoOcupacional,
		&e.TempoFuncaoAtual, &e.TempoEmpresa, &e.AfastamentoAnterior, &e.MotivoAfastamento, &e.DiasAfastamento,
		&e.RiscosNR, &e.DescricaoRiscos, &e.UsaEPI, &e.EPIUtilizados, &e.QueixasAtuais,
		&e.AntecedentesPatologicos, &e.MedicamentosUso, &e.Alergias, &e.HabitosVida, &e.PressaoArterial,
		&e.FrequenciaCardiaca, &e.Peso, &e.Altura, &e.IMC, &e.ExameClinico,
		&e.ExamesComplementares, &e.ResultadosExames, &parecer, &e.Restricoes, &e.Observacoes,
		&e.DataRetornoPrevisto, &e.DocumentoINSS, &e.CIDPrincipal, &e.QueixaErgonomica, &e.CreatedAt,
		&e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	e.TipoExame = ExamType(tipo)
	e.Parecer = Parecer(parecer)
	return &e, nil
}

// fieldArgs returns the editable columns in the order of $3..$44.
func fieldArgs(e *Exam) []interface{} {
	return []interface{}{
		e.EmpresaNome, e.EmpresaCNPJ, e.Setor, e.Funcao, e.Departamento,
		string(e.TipoExame), e.DataExame,
		e.TrabalhadorNome, e.TrabalhadorCPF, e.DataNascimento, e.Idade, e.Sexo,
		e.HistoricoOcupacional, e.TempoFuncaoAtual, e.TempoEmpresa, e.AfastamentoAnterior, e.MotivoAfastamento, e.DiasAfastamento,
		e.RiscosNR, e.DescricaoRiscos, e.UsaEPI, e.EPIUtilizados,
		e.QueixasAtuais, e.AntecedentesPatologicos, e.MedicamentosUso, e.Alergias, e.HabitosVida,
		e.PressaoArterial, e.FrequenciaCardiaca, e.Peso, e.Altura, e.IMC, e.ExameClinico,
		e.ExamesComplementares, e.ResultadosExames,
		string(e.Parecer), e.Restricoes, e.Observacoes,
		e.DataRetornoPrevisto, e.DocumentoINSS, e.CIDPrincipal, e.QueixaErgonomica,
	}
}

func (r *repoPG) Create(ctx context.Context, e *Exam) error {
	e.ID = uuid.New()
	args := append([]interface{}{e.ID, e.UserID}, fieldArgs(e)...)
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO occupational_exams (
			id, user_id, empresa_nome, empresa_cnpj, setor, funcao,
			departamento, tipo_exame, data_exame, trabalhador_nome, trabalhador_cpf, data_nascimento,
			idade, sexo, historico_ocupacional, tempo_funcao_atual, tempo_empresa, afastamento_anterior,
			motivo_afastamento, dias_afastamento, riscos_nr, descricao_riscos, usa_epi, epi_utilizados,
			queixas_atuais, antecedentes_patologicos, medicamentos_uso, alergias, habitos_vida, pressao_arterial,
			frequencia_cardiaca, peso, altura, imc, exame_clinico, exames_complementares,
			resultados_exames, parecer, restricoes, observacoes, data_retorno_previsto, documento_inss,
			cid_principal, queixa_ergonomica)
		VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8::text::occupational_exam_type,
			$9::text::date, $10, $11, NULLIF($12::text, '')::date,
			$13, $14, $15, $16,
			$17, $18, $19, $20,
			$21, $22, $23, $24,
			$25, $26, $27, $28,
			$29, $30, $31, $32,
			$33, $34, $35, $36,
			$37, $38::text::occupational_parecer, $39, $40,
			NULLIF($41::text, '')::date, $42, $43, $44)
		RETURNING created_at, updated_at`,
		args...).Scan(&e.CreatedAt, &e.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, userID string, id uuid.UUID) (*Exam, error) {
	return scanExam(r.conn(ctx).QueryRow(ctx,
		`SELECT `+examCols+` FROM occupational_exams WHERE id = $1 AND user_id = $2`, id, userID))
}

func (r *repoPG) Update(ctx context.Context, e *Exam) error {
	args := append([]interface{}{e.ID, e.UserID}, fieldArgs(e)...)
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE occupational_exams SET
			empresa_nome = $3, empresa_cnpj = $4, setor = $5,
			funcao = $6, departamento = $7, tipo_exame = $8::text::occupational_exam_type,
			data_exame = $9::text::date, trabalhador_nome = $10, trabalhador_cpf = $11,
			data_nascimento = NULLIF($12::text, '')::date, idade = $13, sexo = $14,
			historico_ocupacional = $15, tempo_funcao_atual = $16, tempo_empresa = $17,
			afastamento_anterior = $18, motivo_afastamento = $19, dias_afastamento = $20,
			riscos_nr = $21, descricao_riscos = $22, usa_epi = $23,
			epi_utilizados = $24, queixas_atuais = $25, antecedentes_patologicos = $26,
			medicamentos_uso = $27, alergias = $28, habitos_vida = $29,
			pressao_arterial = $30, frequencia_cardiaca = $31, peso = $32,
			altura = $33, imc = $34, exame_clinico = $35,
			exames_complementares = $36, resultados_exames = $37, parecer = $38::text::occupational_parecer,
			restricoes = $39, observacoes = $40, data_retorno_previsto = NULLIF($41::text, '')::date,
			documento_inss = $42, cid_principal = $43, queixa_ergonomica = $44,
			updated_at = NOW()
		WHERE id = $1 AND user_id = $2
		RETURNING created_at, updated_at`,
		args...).Scan(&e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (r *repoPG) Delete(ctx context.Context, userID string, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM occupational_exams WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*Exam, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM occupational_exams WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+examCols+` FROM occupational_exams WHERE user_id = $1 ORDER BY data_exame DESC, created_at DESC LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items := []*Exam{}
	for rows.Next() {
		e, err := scanExam(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, e)
	}
	return items, total, rows.Err()
}

func (r *repoPG) Stats(ctx context.Context, userID string) (*Stats, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT parecer::text, tipo_exame::text, COUNT(*)
		FROM occupational_exams WHERE user_id = $1
		GROUP BY parecer, tipo_exame`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := &Stats{ByParecer: map[Parecer]int{}, ByTipoExame: map[ExamType]int{}}
	for rows.Next() {
		var parecer, tipo string
		var n int
		if err := rows.Scan(&parecer, &tipo, &n); err != nil {
			return nil, err
		}
		stats.Total += n
		stats.ByParecer[Parecer(parecer)] += n
		stats.ByTipoExame[ExamType(tipo)] += n
	}
	return stats, rows.Err()
}
