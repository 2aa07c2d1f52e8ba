package sqlinline

const QInsertRenderJob = `--sql d2e19e39-9e6a-4a79-89dd-27489486100c
insert into render_jobs(
  id,
  family_id,
  period_start,
  period_end,
  status,
  requested_by,
  requested_at
) values (
  $1::uuid,
  $2::uuid,
  $3::date,
  $4::date,
  'running',
  nullif($5::text, ''),
  $6::timestamptz
);
`

// QFinalizeRenderJob only touches rows still running, so a finalized job can
// never be rewritten.
const QFinalizeRenderJob = `--sql cb066a5f-b186-4c45-8d79-f3c30e83e25b
update render_jobs
set status = $2::text,
    pdf_url = $3::text,
    page_count = $4::int,
    error = $5::text,
    finished_at = $6::timestamptz
where id = $1::uuid
  and status = 'running';
`

const QSelectRenderJob = `--sql 33120b10-a70f-4a61-9692-2a889421a76b
select
  id::text,
  family_id::text,
  period_start,
  period_end,
  status,
  pdf_url,
  page_count,
  error,
  requested_by,
  requested_at,
  finished_at
from render_jobs
where id = $1::uuid
limit 1;
`
