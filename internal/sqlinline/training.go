package sqlinline

// Queries for the training job queue and its shared status records. Each
// query starts with a --sql marker line consumed by infra.SQLRunner.

const QEnqueueTrainingJob = `--sql 8c1f3a6e-2d4b-4f7a-9c0e-1b5d7a3f9e21
insert into training_jobs (id, kind, status, spec_json, created_at, updated_at)
values ($1, $2, 'queued', $3, now(), now());
`

const QClaimTrainingJob = `--sql 5e9b2c71-8a4d-4e3f-b6c2-0f7a1d8e4c53
with next_job as (
    select id
    from training_jobs
    where status = 'queued'
    order by created_at asc
    for update skip locked
    limit 1
),
claimed as (
    update training_jobs
    set status = 'running', updated_at = now()
    where id in (select id from next_job)
    returning id, kind, spec_json
)
select * from claimed;
`

const QSelectTrainingRecord = `--sql 3a7d9e42-6b1c-4a8f-8d5e-2c4f6b0a7e19
select id, kind, status, results_json, cost, train_time,
       current_step, total_steps, loss, eta_min, elapsed_min,
       coalesce(error, ''), created_at, updated_at
from training_jobs
where id = $1;
`

const QUpdateTrainingProgress = `--sql 9f2e4c81-1d6a-4b3e-a7f0-5c8b2d9e6a34
update training_jobs
set current_step = greatest(current_step, $2),
    total_steps  = $3,
    loss         = $4,
    eta_min      = $5,
    elapsed_min  = $6,
    updated_at   = now()
where id = $1;
`

const QFinishTrainingJob = `--sql 6d8a1f53-3e7b-4c2d-9a4e-8b0c5f2d7a46
update training_jobs
set status       = $2,
    results_json = $3,
    cost         = $4,
    train_time   = $5,
    error        = nullif($6, ''),
    updated_at   = now()
where id = $1;
`

const QSelectIntegrationToken = `--sql 2b6e8d94-7f1a-4d5c-b3e8-9a0d4c6f1b72
select token
from integration_tokens
where provider = $1
order by updated_at desc
limit 1;
`
