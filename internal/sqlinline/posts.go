package sqlinline

// QSelectFamilyPosts returns one row per post image (or one row with null
// image columns for text-only posts), newest post first and images in their
// stored order.
const QSelectFamilyPosts = `--sql 556a8e60-0cf7-46b8-af2a-5a15aa290fe5
select
  p.id::text,
  p.content,
  p.created_at,
  p.author_id::text,
  pr.full_name,
  pr.avatar_url,
  pi.id::text,
  pi.url,
  pi.alt_text
from posts p
left join profiles pr on pr.id = p.author_id
left join post_images pi on pi.post_id = p.id
where p.family_id = $1::uuid
  and p.created_at >= $2::timestamptz
  and p.created_at < $3::timestamptz
order by p.created_at desc, p.id asc, pi.position asc nulls last, pi.id asc;
`
